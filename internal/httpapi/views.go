package httpapi

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/dmorales/aulalink/internal/rostergraph"
)

// userView is the flattened user shape returned in rosters.
type userView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photoUrl"`
}

func userViewFrom(e rostergraph.Entity) userView {
	return userView{
		ID:       e.Ref.Key,
		Name:     e.Attrs.String("name"),
		Email:    e.Attrs.String("email"),
		PhotoURL: e.Attrs.String("photoUrl"),
	}
}

// rosterCollator orders names with Spanish collation rules so accented
// names sort where users expect them, not at the end of the alphabet.
var rosterCollator = collate.New(language.Spanish, collate.IgnoreCase)

func sortUserViews(users []userView) {
	sort.SliceStable(users, func(i, j int) bool {
		return rosterCollator.CompareString(users[i].Name, users[j].Name) < 0
	})
}

// userViews maps and sorts a traversal result.
func userViews(neighbors []rostergraph.Neighbor) []userView {
	out := make([]userView, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, userViewFrom(n.Entity))
	}

	sortUserViews(out)

	return out
}

// cellView is a cell plus its student roster.
type cellView struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Students []userView `json:"students"`
}
