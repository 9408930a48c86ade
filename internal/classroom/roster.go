package classroom

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// rosterPage mirrors one page of a membership list response. The same
// shape serves both /teachers and /students; only the array key differs.
type rosterPage struct {
	Teachers      []memberResponse `json:"teachers"`
	Students      []memberResponse `json:"students"`
	NextPageToken string           `json:"nextPageToken"`
}

// ListTeachers fetches the complete teacher roster for a course,
// following continuation tokens to the last page before returning.
func (c *Client) ListTeachers(ctx context.Context, courseID string) ([]Member, error) {
	return c.listMembers(ctx, courseID, "teachers")
}

// ListStudents fetches the complete student roster for a course,
// following continuation tokens to the last page before returning.
func (c *Client) ListStudents(ctx context.Context, courseID string) ([]Member, error) {
	return c.listMembers(ctx, courseID, "students")
}

// listMembers pages through a membership list endpoint to completion.
// The diff in the sync engine needs the full target set; a partial list
// would read as mass membership removal.
func (c *Client) listMembers(ctx context.Context, courseID, kind string) ([]Member, error) {
	var (
		members   []Member
		pageToken string
		page      int
	)

	for {
		path := fmt.Sprintf("/courses/%s/%s", url.PathEscape(courseID), kind)
		if pageToken != "" {
			path += "?pageToken=" + url.QueryEscape(pageToken)
		}

		var resp rosterPage
		if err := c.getJSON(ctx, path, &resp); err != nil {
			return nil, err
		}

		raw := resp.Teachers
		if kind == "students" {
			raw = resp.Students
		}

		for _, m := range raw {
			members = append(members, m.toMember())
		}

		page++

		c.logger.Debug("fetched roster page",
			slog.String("course_id", courseID),
			slog.String("kind", kind),
			slog.Int("page", page),
			slog.Int("count", len(raw)),
			slog.Bool("has_next", resp.NextPageToken != ""),
		)

		if resp.NextPageToken == "" {
			return members, nil
		}

		pageToken = resp.NextPageToken
	}
}
