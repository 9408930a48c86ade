package classroom

import (
	"context"
	"fmt"
	"net/url"
)

// Course fetches a single course by its provider ID.
func (c *Client) Course(ctx context.Context, courseID string) (*Course, error) {
	var course Course
	if err := c.getJSON(ctx, "/courses/"+url.PathEscape(courseID), &course); err != nil {
		return nil, err
	}

	return &course, nil
}

type coursesPage struct {
	Courses       []Course `json:"courses"`
	NextPageToken string   `json:"nextPageToken"`
}

// ListCourses fetches all active courses where the caller is a teacher,
// following continuation tokens to completion.
func (c *Client) ListCourses(ctx context.Context) ([]Course, error) {
	var (
		courses   []Course
		pageToken string
	)

	for {
		path := "/courses?teacherId=me&courseStates=ACTIVE"
		if pageToken != "" {
			path += "&pageToken=" + url.QueryEscape(pageToken)
		}

		var resp coursesPage
		if err := c.getJSON(ctx, path, &resp); err != nil {
			return nil, fmt.Errorf("classroom: listing courses: %w", err)
		}

		courses = append(courses, resp.Courses...)

		if resp.NextPageToken == "" {
			return courses, nil
		}

		pageToken = resp.NextPageToken
	}
}
