// Package edx handles the connection to an Open edX LMS instance: locating the
// instance configuration for a course URL, authenticating, and fetching pages
// and API payloads over an authenticated session.
package edx

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/BurntSushi/toml"
)

// Instance describes how to talk to a specific Open edX deployment.
type Instance struct {
	Name           string `toml:"name"`
	URL            string `toml:"url"`
	LoginPage      string `toml:"login_page"`
	CoursePrefix   string `toml:"course_prefix"`
	CoursePageName string `toml:"course_page_name"`
}

// Catalog maps instance host names to their configuration.
type Catalog struct {
	Instances map[string]Instance `toml:"instances"`
}

// defaultCatalog covers the deployments the scraper has been run against.
// Unknown hosts fall back to the stock Open edX paths.
var defaultCatalog = Catalog{
	Instances: map[string]Instance{
		"courses.edx.org": {
			Name:           "edx",
			URL:            "https://courses.edx.org",
			LoginPage:      "/login",
			CoursePrefix:   "/courses/",
			CoursePageName: "/course/",
		},
		"www.fun-mooc.fr": {
			Name:           "fun",
			URL:            "https://www.fun-mooc.fr",
			LoginPage:      "/login",
			CoursePrefix:   "/courses/",
			CoursePageName: "/info/",
		},
	},
}

// LoadCatalog reads extra instance definitions from a TOML file and merges them
// over the compiled-in defaults. An empty path returns the defaults unchanged.
func LoadCatalog(path string) (Catalog, error) {
	catalog := Catalog{Instances: make(map[string]Instance, len(defaultCatalog.Instances))}
	for host, inst := range defaultCatalog.Instances {
		catalog.Instances[host] = inst
	}

	if path == "" {
		return catalog, nil
	}

	var extra Catalog
	if _, err := toml.DecodeFile(path, &extra); err != nil {
		return Catalog{}, fmt.Errorf("could not decode instance catalog %s: %v", path, err)
	}
	for host, inst := range extra.Instances {
		catalog.Instances[host] = inst
	}

	return catalog, nil
}

// ForCourseURL returns the instance configuration matching the course URL host.
// Hosts absent from the catalog get a generic configuration derived from the URL.
func (c Catalog) ForCourseURL(courseURL string) (Instance, error) {
	u, err := url.Parse(courseURL)
	if err != nil {
		return Instance{}, fmt.Errorf("invalid course URL %s: %v", courseURL, err)
	}
	if u.Host == "" {
		return Instance{}, fmt.Errorf("course URL %s has no host", courseURL)
	}

	if inst, ok := c.Instances[u.Host]; ok {
		return inst, nil
	}

	return Instance{
		Name:           u.Host,
		URL:            u.Scheme + "://" + u.Host,
		LoginPage:      "/login",
		CoursePrefix:   "/courses/",
		CoursePageName: "/course/",
	}, nil
}

// PrepareURL turns a possibly scheme-less or relative URL into an absolute one
// rooted at the instance.
func (i Instance) PrepareURL(src string) string {
	switch {
	case strings.HasPrefix(src, "//"):
		return "http:" + src
	case strings.HasPrefix(src, "/"):
		return i.URL + src
	default:
		return src
	}
}
