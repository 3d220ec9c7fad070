package edx_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzim/openedx2zim/internal/edx"
)

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		catalogContent string
		noCatalogFile  bool

		wantHost     string
		wantInstance edx.Instance
		wantError    bool
	}{
		"No catalog file returns defaults": {
			noCatalogFile: true,
			wantHost:      "courses.edx.org",
			wantInstance: edx.Instance{
				Name:           "edx",
				URL:            "https://courses.edx.org",
				LoginPage:      "/login",
				CoursePrefix:   "/courses/",
				CoursePageName: "/course/",
			},
		},
		"Extra instance is merged over defaults": {
			catalogContent: `
[instances."mooc.example.org"]
name = "example"
url = "https://mooc.example.org"
login_page = "/signin"
course_prefix = "/cours/"
course_page_name = "/info/"
`,
			wantHost: "mooc.example.org",
			wantInstance: edx.Instance{
				Name:           "example",
				URL:            "https://mooc.example.org",
				LoginPage:      "/signin",
				CoursePrefix:   "/cours/",
				CoursePageName: "/info/",
			},
		},
		"Known host can be overridden": {
			catalogContent: `
[instances."courses.edx.org"]
name = "edx-override"
url = "https://courses.edx.org"
login_page = "/login"
course_prefix = "/courses/"
course_page_name = "/courseware/"
`,
			wantHost: "courses.edx.org",
			wantInstance: edx.Instance{
				Name:           "edx-override",
				URL:            "https://courses.edx.org",
				LoginPage:      "/login",
				CoursePrefix:   "/courses/",
				CoursePageName: "/courseware/",
			},
		},

		"Invalid TOML errors": {
			catalogContent: "not [valid toml",
			wantError:      true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var path string
			if !tc.noCatalogFile {
				path = filepath.Join(t.TempDir(), "instances.toml")
				require.NoError(t, os.WriteFile(path, []byte(tc.catalogContent), 0600), "Setup: could not write catalog")
			}

			catalog, err := edx.LoadCatalog(path)
			if tc.wantError {
				require.Error(t, err, "LoadCatalog should have failed")
				return
			}
			require.NoError(t, err, "LoadCatalog should not have failed")

			assert.Equal(t, tc.wantInstance, catalog.Instances[tc.wantHost], "Instance should match expected configuration")
		})
	}
}

func TestForCourseURL(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		courseURL string

		wantName  string
		wantURL   string
		wantError bool
	}{
		"Known instance": {
			courseURL: "https://courses.edx.org/courses/course-v1:edX+DemoX+Demo/course/",
			wantName:  "edx",
			wantURL:   "https://courses.edx.org",
		},
		"Unknown instance falls back to generic layout": {
			courseURL: "https://mooc.example.org/courses/course-v1:X+Y+Z/course/",
			wantName:  "mooc.example.org",
			wantURL:   "https://mooc.example.org",
		},

		"Invalid URL errors":  {courseURL: "://nope", wantError: true},
		"URL with no host":    {courseURL: "/courses/course-v1:X+Y+Z/course/", wantError: true},
		"Empty string errors": {courseURL: "", wantError: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			catalog, err := edx.LoadCatalog("")
			require.NoError(t, err, "Setup: could not load default catalog")

			instance, err := catalog.ForCourseURL(tc.courseURL)
			if tc.wantError {
				require.Error(t, err, "ForCourseURL should have failed")
				return
			}
			require.NoError(t, err, "ForCourseURL should not have failed")

			assert.Equal(t, tc.wantName, instance.Name, "Instance name should match")
			assert.Equal(t, tc.wantURL, instance.URL, "Instance URL should match")
		})
	}
}

func TestPrepareURL(t *testing.T) {
	t.Parallel()

	instance := edx.Instance{URL: "https://mooc.example.org"}

	tests := map[string]struct {
		src string

		want string
	}{
		"Scheme-less URL":       {src: "//cdn.example.org/a.png", want: "http://cdn.example.org/a.png"},
		"Instance-relative URL": {src: "/asset/a.png", want: "https://mooc.example.org/asset/a.png"},
		"Absolute URL":          {src: "https://other.example.org/a.png", want: "https://other.example.org/a.png"},
		"Relative path":         {src: "a.png", want: "a.png"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, instance.PrepareURL(tc.src), "Prepared URL should match")
		})
	}
}
