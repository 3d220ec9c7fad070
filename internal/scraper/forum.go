package scraper

import (
	"context"
	"fmt"
	"html/template"
	"net/url"
	"path/filepath"

	"github.com/ubuntu/decorate"

	"github.com/openzim/openedx2zim/internal/templates"
)

// forumThreadPageSize bounds how many threads one listing request fetches.
const forumThreadPageSize = 100

// forumCapture is the course discussion snapshot: topics and their threads
// with replies.
type forumCapture struct {
	categories map[string][]templates.ForumThread
	threads    []forumThread
}

type forumThread struct {
	id       string
	title    string
	author   string
	body     string
	comments []templates.ThreadComment
}

type discussionThread struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	TopicID      string `json:"topic_id"`
	Author       string `json:"author"`
	RenderedBody string `json:"rendered_body"`
}

// captureForum snapshots the course discussions through the discussion API:
// topic names, the thread listing per topic, and the replies of every thread.
func (s *Scraper) captureForum(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not capture forum")

	s.log.Info("Getting forum")

	topicNames, err := s.fetchForumTopics(ctx)
	if err != nil {
		return err
	}

	var listing struct {
		Results []discussionThread `json:"results"`
	}
	apiPath := fmt.Sprintf("/api/discussion/v1/threads/?course_id=%s&page_size=%d",
		url.QueryEscape(s.courseID), forumThreadPageSize)
	if err := s.conn.GetAPIJSON(ctx, apiPath, &listing); err != nil {
		return err
	}

	capture := &forumCapture{categories: make(map[string][]templates.ForumThread)}
	for _, thread := range listing.Results {
		category := topicNames[thread.TopicID]
		if category == "" {
			category = "General"
		}

		comments, err := s.fetchThreadComments(ctx, thread.ID)
		if err != nil {
			s.log.Warn("Failed to fetch thread replies", "thread", thread.ID, "error", err)
		}

		capture.categories[category] = append(capture.categories[category], templates.ForumThread{
			Title:    thread.Title,
			Path:     "forum/" + thread.ID,
			Category: category,
		})
		capture.threads = append(capture.threads, forumThread{
			id:       thread.ID,
			title:    thread.Title,
			author:   thread.Author,
			body:     thread.RenderedBody,
			comments: comments,
		})
	}

	s.forum = capture
	return nil
}

// fetchForumTopics maps topic ids to their display names.
func (s *Scraper) fetchForumTopics(ctx context.Context) (map[string]string, error) {
	type topic struct {
		ID       string  `json:"id"`
		Name     string  `json:"name"`
		Children []topic `json:"children"`
	}
	var topics struct {
		CoursewareTopics    []topic `json:"courseware_topics"`
		NonCoursewareTopics []topic `json:"non_courseware_topics"`
	}
	apiPath := "/api/discussion/v1/course_topics/" + s.courseID
	if err := s.conn.GetAPIJSON(ctx, apiPath, &topics); err != nil {
		return nil, err
	}

	names := make(map[string]string)
	var flatten func(parent string, topics []topic)
	flatten = func(parent string, topics []topic) {
		for _, t := range topics {
			name := t.Name
			if parent != "" {
				name = parent + " / " + t.Name
			}
			if t.ID != "" {
				names[t.ID] = name
			}
			flatten(name, t.Children)
		}
	}
	flatten("", topics.CoursewareTopics)
	flatten("", topics.NonCoursewareTopics)
	return names, nil
}

// fetchThreadComments retrieves the replies of one thread.
func (s *Scraper) fetchThreadComments(ctx context.Context, threadID string) ([]templates.ThreadComment, error) {
	var listing struct {
		Results []struct {
			Author       string `json:"author"`
			RenderedBody string `json:"rendered_body"`
		} `json:"results"`
	}
	apiPath := fmt.Sprintf("/api/discussion/v1/comments/?thread_id=%s&page_size=%d",
		url.QueryEscape(threadID), forumThreadPageSize)
	if err := s.conn.GetAPIJSON(ctx, apiPath, &listing); err != nil {
		return nil, err
	}

	var comments []templates.ThreadComment
	for _, comment := range listing.Results {
		comments = append(comments, templates.ThreadComment{
			Author: comment.Author,
			Body:   template.HTML(comment.RenderedBody), // #nosec:G203 instance-rendered markup
		})
	}
	return comments, nil
}

// renderForum writes the forum listing and one page per thread.
func (s *Scraper) renderForum() error {
	listing := templates.ForumData{
		Page:       s.page("Forum", "../"),
		Categories: s.forum.categories,
	}
	if err := templates.RenderToFile(filepath.Join(s.buildDir, "forum", "index.html"), "forum.html", listing); err != nil {
		return err
	}

	for _, thread := range s.forum.threads {
		data := templates.ThreadData{
			Page:     s.page(thread.title, "../../"),
			Author:   thread.author,
			Body:     template.HTML(thread.body), // #nosec:G203 instance-rendered markup
			Comments: thread.comments,
		}
		dest := filepath.Join(s.buildDir, "forum", thread.id, "index.html")
		if err := templates.RenderToFile(dest, "forum_thread.html", data); err != nil {
			return err
		}
	}
	return nil
}
