// Package course models an Open edX course: its identity, its catalog info and
// the tree of xblocks making up its content.
package course

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/openzim/openedx2zim/internal/edx"
)

// ErrCourseURLMismatch is returned when the course URL does not follow the
// instance's course URL layout.
var ErrCourseURLMismatch = errors.New("course URL does not match the instance course layout")

// Info is the catalog information of a course as served by the courses API.
type Info struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Org              string `json:"org"`
	ShortDescription string `json:"short_description"`
	Number           string `json:"number"`
	Start            string `json:"start"`
	End              string `json:"end"`
}

// blocksQuery is the fixed query the scraper sends to the blocks API: full depth,
// student view data for videos and discussions, and per-branch block counts.
const blocksQuery = "depth=all&requested_fields=graded,format,student_view_multi_device" +
	"&student_view_data=video,discussion&block_counts=video,discussion,problem&nav_depth=3"

// ExtractID extracts the course identifier from a course URL given the
// instance's course prefix and course page name. The returned identifier is
// URL-encoded the way the courses API expects it.
func ExtractID(courseURL string, instance edx.Instance) (string, error) {
	pattern := "^" + regexp.QuoteMeta(instance.URL+instance.CoursePrefix) +
		".*" + regexp.QuoteMeta(instance.CoursePageName)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("could not compile course URL pattern: %v", err)
	}

	match := re.FindString(courseURL)
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrCourseURLMismatch, courseURL)
	}

	id := match[len(instance.URL+instance.CoursePrefix) : len(match)-len(instance.CoursePageName)]
	if strings.Contains(id, "%3") {
		// Already URL-encoded.
		return id, nil
	}
	return url.QueryEscape(id), nil
}

// FetchInfo retrieves the catalog information of the course for the session user.
func FetchInfo(ctx context.Context, conn *edx.Connection, courseID string) (Info, error) {
	var info Info
	apiPath := fmt.Sprintf("/api/courses/v1/courses/%s?username=%s", courseID, conn.User())
	if err := conn.GetAPIJSON(ctx, apiPath, &info); err != nil {
		return Info{}, fmt.Errorf("could not fetch course info: %w", err)
	}
	return info, nil
}

// FetchBlocks retrieves the full xblock structure of the course.
func FetchBlocks(ctx context.Context, conn *edx.Connection, courseID string) (BlocksResponse, error) {
	var blocks BlocksResponse
	apiPath := fmt.Sprintf("/api/courses/v1/blocks/?course_id=%s&username=%s&%s",
		courseID, conn.User(), blocksQuery)
	if err := conn.GetAPIJSON(ctx, apiPath, &blocks); err != nil {
		return BlocksResponse{}, fmt.Errorf("could not fetch course blocks: %w", err)
	}
	return blocks, nil
}
