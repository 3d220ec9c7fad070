package course_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzim/openedx2zim/internal/course"
	"github.com/openzim/openedx2zim/internal/edx"
)

func TestExtractID(t *testing.T) {
	t.Parallel()

	instance := edx.Instance{
		URL:            "https://mooc.example.org",
		CoursePrefix:   "/courses/",
		CoursePageName: "/course/",
	}

	tests := map[string]struct {
		courseURL string
		instance  edx.Instance

		want    string
		wantErr error
	}{
		"Plain course ID is escaped": {
			courseURL: "https://mooc.example.org/courses/course-v1:edX+DemoX+Demo_Course/course/",
			instance:  instance,
			want:      "course-v1%3AedX%2BDemoX%2BDemo_Course",
		},
		"Already encoded ID is kept": {
			courseURL: "https://mooc.example.org/courses/course-v1%3AedX%2BDemoX%2BDemo/course/",
			instance:  instance,
			want:      "course-v1%3AedX%2BDemoX%2BDemo",
		},
		"Trailing content after page name is ignored": {
			courseURL: "https://mooc.example.org/courses/course-v1:edX+DemoX+Demo/course/some/deep/page",
			instance:  instance,
			want:      "course-v1%3AedX%2BDemoX%2BDemo",
		},

		"URL from another instance": {
			courseURL: "https://other.example.org/courses/course-v1:edX+DemoX+Demo/course/",
			instance:  instance,
			wantErr:   course.ErrCourseURLMismatch,
		},
		"URL without course page name": {
			courseURL: "https://mooc.example.org/courses/course-v1:edX+DemoX+Demo/",
			instance:  instance,
			wantErr:   course.ErrCourseURLMismatch,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := course.ExtractID(tc.courseURL, tc.instance)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr, "ExtractID should have failed with the expected error")
				return
			}
			require.NoError(t, err, "ExtractID should not have failed")
			assert.Equal(t, tc.want, got, "Extracted course ID should match")
		})
	}
}

func newTestConnection(t *testing.T, handler http.Handler) *edx.Connection {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	conn, err := edx.New(slog.Default(), edx.Instance{URL: server.URL}, "user@example.org", "pass")
	require.NoError(t, err, "Setup: could not create connection")
	return conn
}

func TestFetchInfo(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/courses/v1/courses/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": "course-v1:edX+DemoX+Demo",
			"name": "Demonstration Course",
			"org": "edX",
			"short_description": "A demo course"
		}`)
	})

	conn := newTestConnection(t, mux)
	info, err := course.FetchInfo(context.Background(), conn, "course-v1%3AedX%2BDemoX%2BDemo")
	require.NoError(t, err, "FetchInfo should not have failed")

	assert.Equal(t, "Demonstration Course", info.Name, "Course name should match")
	assert.Equal(t, "edX", info.Org, "Course org should match")
	assert.Equal(t, "A demo course", info.ShortDescription, "Course description should match")
}

func TestFetchBlocks(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/courses/v1/blocks/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("depth"), "Blocks request should ask for full depth")
		fmt.Fprint(w, `{
			"root": "block-v1:edX+DemoX+Demo+type@course+block@course",
			"blocks": {
				"block-v1:edX+DemoX+Demo+type@course+block@course": {
					"id": "block-v1:edX+DemoX+Demo+type@course+block@course",
					"type": "course",
					"display_name": "Demonstration Course"
				}
			}
		}`)
	})

	conn := newTestConnection(t, mux)
	blocks, err := course.FetchBlocks(context.Background(), conn, "course-v1%3AedX%2BDemoX%2BDemo")
	require.NoError(t, err, "FetchBlocks should not have failed")

	assert.Equal(t, "block-v1:edX+DemoX+Demo+type@course+block@course", blocks.Root, "Root block ID should match")
	require.Len(t, blocks.Blocks, 1, "Blocks payload should be decoded")
	assert.Equal(t, "course", blocks.Blocks[blocks.Root].Type, "Root block type should match")
}
