package classroom

import (
	"context"
	"fmt"
	"net/url"
)

type courseWorkPage struct {
	CourseWork    []CourseWork `json:"courseWork"`
	NextPageToken string       `json:"nextPageToken"`
}

// ListCourseWork fetches all coursework items for a course, following
// continuation tokens to completion.
func (c *Client) ListCourseWork(ctx context.Context, courseID string) ([]CourseWork, error) {
	var (
		work      []CourseWork
		pageToken string
	)

	for {
		path := fmt.Sprintf("/courses/%s/courseWork", url.PathEscape(courseID))
		if pageToken != "" {
			path += "?pageToken=" + url.QueryEscape(pageToken)
		}

		var resp courseWorkPage
		if err := c.getJSON(ctx, path, &resp); err != nil {
			return nil, err
		}

		work = append(work, resp.CourseWork...)

		if resp.NextPageToken == "" {
			return work, nil
		}

		pageToken = resp.NextPageToken
	}
}

type submissionsPage struct {
	StudentSubmissions []Submission `json:"studentSubmissions"`
	NextPageToken      string       `json:"nextPageToken"`
}

// ListSubmissions fetches all student submissions for one coursework item.
// Pass userID "" for all students, or a provider user ID (or "me") to
// restrict the list to one student's submission.
func (c *Client) ListSubmissions(ctx context.Context, courseID, workID, userID string) ([]Submission, error) {
	var (
		subs      []Submission
		pageToken string
	)

	for {
		path := fmt.Sprintf("/courses/%s/courseWork/%s/studentSubmissions",
			url.PathEscape(courseID), url.PathEscape(workID))

		q := url.Values{}
		if userID != "" {
			q.Set("userId", userID)
		}

		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		var resp submissionsPage
		if err := c.getJSON(ctx, path, &resp); err != nil {
			return nil, err
		}

		subs = append(subs, resp.StudentSubmissions...)

		if resp.NextPageToken == "" {
			return subs, nil
		}

		pageToken = resp.NextPageToken
	}
}
