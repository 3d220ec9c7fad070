package templates

import "html/template"

// Tab is one entry in the top navigation bar.
type Tab struct {
	Name string
	Path string
}

// Page carries what every rendered page needs.
type Page struct {
	Title   string
	RootURL string
	Tabs    []Tab
	RTL     bool
}

// HomeData renders the course homepage.
type HomeData struct {
	Page
	Messages []template.HTML
}

// NavItem is a chapter or sequential entry in course navigation.
type NavItem struct {
	Title string
	Path  string
	Icon  string
}

// CourseData renders the course index with its chapter menu.
type CourseData struct {
	Page
	Chapters []NavItem
}

// ChapterData renders a chapter page listing its sequentials.
type ChapterData struct {
	Page
	Sequentials []NavItem
}

// SequentialData renders a sequential page listing its verticals.
type SequentialData struct {
	Page
	Verticals []NavItem
}

// VerticalData renders a single vertical with its xblock contents and
// previous/next navigation.
type VerticalData struct {
	Page
	Contents        []template.HTML
	ExtraHeaders    []template.HTML
	ExtraContent    []template.HTML
	ExtractedID     string
	ChapterTitle    string
	SequentialTitle string
	PrevPath        string
	NextPath        string
	RemoveSeqNav    bool
}

// Sub is one subtitle track of a video.
type Sub struct {
	Code string
	Name string
}

// VideoData renders an offline video player.
type VideoData struct {
	Format     string
	FolderName string
	Subs       []Sub
	Title      string
}

// ProblemData renders an interactive problem with optionally fetched answers.
type ProblemData struct {
	ProblemID        string
	ProblemHeader    template.HTML
	Content          template.HTML
	PathToRoot       string
	AnswersAvailable bool
}

// DiscussionData renders the pointer from a discussion block to the archived
// forum. An empty ForumPath means the forum is not in the archive.
type DiscussionData struct {
	ForumPath string
}

// DragDropData renders a static snapshot of a drag and drop exercise.
type DragDropData struct {
	Title    string
	Question template.HTML
	ImgPath  string
}

// FreeTextData renders a free text response prompt.
type FreeTextData struct {
	Prompt template.HTML
}

// UnavailableData renders the placeholder for content that cannot work offline.
type UnavailableData struct {
	Kind string
}

// SpecificPageData renders an annexed course page.
type SpecificPageData struct {
	Page
	Content template.HTML
}

// WikiPageData renders one captured wiki page.
type WikiPageData struct {
	Page
	Content  template.HTML
	Children []NavItem
}

// ForumThread is a captured forum thread.
type ForumThread struct {
	Title    string
	Path     string
	Category string
}

// ForumData renders the forum category/thread listing.
type ForumData struct {
	Page
	Categories map[string][]ForumThread
}

// ThreadComment is one captured reply in a forum thread.
type ThreadComment struct {
	Author string
	Body   template.HTML
}

// ThreadData renders one captured forum thread with its replies.
type ThreadData struct {
	Page
	Author   string
	Body     template.HTML
	Comments []ThreadComment
}

// BookNavData renders a PDF book list captured from a book sidebar.
type BookNavData struct {
	Page
	Books []NavItem
}
