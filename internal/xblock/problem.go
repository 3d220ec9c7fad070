package xblock

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ubuntu/decorate"

	"github.com/openzim/openedx2zim/internal/fileutils"
	"github.com/openzim/openedx2zim/internal/htmlproc"
	"github.com/openzim/openedx2zim/internal/templates"
)

// maxComboOptions caps the checkbox problems whose answers get fetched: above
// this the combination space grows too large to probe the instance with.
const maxComboOptions = 5

// Problem downloads a problem xblock: the exercise markup, and for multiple
// choice problems the graded responses probed from the instance so checking
// answers works offline.
type Problem struct {
	base

	handler          string
	header           string
	content          string
	answers          map[string]string
	answersAvailable bool
}

// Download fetches the problem markup, strips the online-only chrome from it
// and probes the instance for the graded response of every answer candidate.
func (p *Problem) Download(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not download problem %s", p.node.DisplayName)

	body, err := p.deps.Conn.GetPage(ctx, p.node.StudentViewURL)
	if err != nil {
		return err
	}
	page, err := htmlproc.ParsePage(string(body))
	if err != nil {
		return err
	}

	wrapper := page.Find("div", "problems-wrapper")
	if wrapper == nil {
		return fmt.Errorf("no problems-wrapper in block page")
	}
	p.handler = wrapper.Attr("data-url")

	markup := wrapper.Attr("data-content")
	if markup == "" {
		var resp struct {
			HTML string `json:"html"`
		}
		if err := p.deps.Conn.GetAPIJSON(ctx, p.handler+"/problem_get", &resp); err != nil {
			return err
		}
		markup = resp.HTML
	}

	doc, err := htmlproc.ParsePage(markup)
	if err != nil {
		return err
	}
	cleanProblemContent(doc)

	p.header, err = doc.Find("h3", "problem-header").OuterHTML()
	if err != nil {
		return err
	}

	problemTag := doc.Find("div", "problem")
	if problemTag == nil {
		return fmt.Errorf("no problem markup in block content")
	}

	if err := p.fetchAnswers(ctx, problemTag); err != nil {
		p.deps.Log.Warn("Failed to fetch problem answers", "id", p.node.ID, "error", err)
	}

	inner, err := problemTag.FirstElementChild().OuterHTML()
	if err != nil {
		return err
	}
	content, err := p.deps.Processor.DownloadDependencies(ctx, inner,
		p.deps.InstanceAssetsDir, p.embedRoot()+"instance_assets")
	if err != nil {
		return err
	}
	// Inline xmodule scripts tend to access content below them.
	p.content, err = htmlproc.DeferScripts(content)
	return err
}

// cleanProblemContent strips the state a logged-in session leaks into the
// markup: notifications, previous answers and the online submission controls.
func cleanProblemContent(doc *htmlproc.Selection) {
	for _, div := range doc.FindAll("div", "notification") {
		div.Remove()
	}
	for _, input := range doc.FindAll("input", "") {
		if input.HasAttr("value") {
			input.SetAttr("value", "")
		}
		input.RemoveAttr("checked")
	}
	for _, label := range doc.FindAll("label", "response-label") {
		classes := label.Classes()
		for i, c := range classes {
			if c == "choicegroup_correct" {
				label.SetAttr("class", strings.Join(append(classes[:i], classes[i+1:]...), " "))
				break
			}
		}
	}
	doc.Find("span", "message").Remove()
	doc.Find("div", "action").Remove()
	for _, span := range doc.FindAll("span", "unanswered") {
		span.Remove()
	}
	for _, span := range doc.FindAll("span", "sr") {
		span.Remove()
	}
}

// answerOption is one selectable input of a multiple choice problem.
type answerOption struct {
	name string
	id   string
}

// fetchAnswers probes the instance with every answer candidate and records the
// graded markup per candidate. Only multiple choice problems are fetchable:
// radio groups, and checkbox groups small enough to enumerate.
func (p *Problem) fetchAnswers(ctx context.Context, problemTag *htmlproc.Selection) error {
	options, combinations := answerCandidates(problemTag)
	if options == nil {
		p.deps.Log.Debug("Answer fetching not supported for this problem type", "id", p.node.ID)
		return nil
	}

	p.answers = make(map[string]string)
	for _, candidate := range combinations {
		graded, err := p.checkAnswer(ctx, candidate)
		if err != nil {
			return err
		}
		var ids []string
		for _, option := range candidate {
			ids = append(ids, option.id)
		}
		p.answers[strings.Join(ids, "-")] = graded
	}

	return p.writeAnswers()
}

// answerCandidates returns the problem's options and the candidate selections
// to probe, or nil when answers are not fetchable.
func answerCandidates(problemTag *htmlproc.Selection) (options []answerOption, combinations [][]answerOption) {
	collect := func(inputType string) []answerOption {
		var out []answerOption
		for _, input := range problemTag.FindAll("input", "") {
			if input.Attr("type") != inputType {
				continue
			}
			out = append(out, answerOption{name: input.Attr("name"), id: input.Attr("id")})
		}
		return out
	}

	if radios := collect("radio"); len(radios) > 1 {
		for _, option := range radios {
			combinations = append(combinations, []answerOption{option})
		}
		return radios, combinations
	}

	checkboxes := collect("checkbox")
	if len(checkboxes) <= 1 || len(checkboxes) > maxComboOptions {
		return nil, nil
	}
	// All non-empty subsets, smallest first.
	for mask := 1; mask < 1<<len(checkboxes); mask++ {
		var candidate []answerOption
		for i, option := range checkboxes {
			if mask&(1<<i) != 0 {
				candidate = append(candidate, option)
			}
		}
		combinations = append(combinations, candidate)
	}
	return checkboxes, combinations
}

// checkAnswer submits one candidate to the problem_check handler and returns
// the graded problem markup from the response.
func (p *Problem) checkAnswer(ctx context.Context, candidate []answerOption) (string, error) {
	form := url.Values{}
	for _, option := range candidate {
		// The input id is "{name}_{choice}", the handler wants the choice part.
		form.Set(option.name, option.id[min(len(option.name)+1, len(option.id)):])
	}

	var result struct {
		Success  string `json:"success"`
		Contents string `json:"contents"`
	}
	if err := p.deps.Conn.PostAPIForm(ctx, p.handler+"/problem_check", form, p.node.StudentViewURL, &result); err != nil {
		return "", err
	}
	if result.Success != "correct" && result.Success != "incorrect" {
		return "", fmt.Errorf("problem_check did not grade the answer: %s", result.Success)
	}

	graded, err := htmlproc.ParsePage(result.Contents)
	if err != nil {
		return "", err
	}
	return graded.Find("div", "problem").FirstElementChild().FirstElementChild().OuterHTML()
}

// writeAnswers stores the graded responses in a per-problem javascript file
// under instance_assets, loaded by the offline answer checker.
func (p *Problem) writeAnswers() error {
	payload, err := json.MarshalIndent(p.answers, "", "    ")
	if err != nil {
		return fmt.Errorf("could not encode answers: %v", err)
	}

	if err := os.MkdirAll(p.deps.InstanceAssetsDir, 0750); err != nil {
		return err
	}
	dest := filepath.Join(p.deps.InstanceAssetsDir, p.node.RandomID+"_answers.js")
	content := fmt.Sprintf("problem_answers[%q]=%s", p.node.RandomID, payload)
	if err := fileutils.AtomicWrite(dest, []byte(content)); err != nil {
		return fmt.Errorf("could not write answers file: %v", err)
	}

	p.answersAvailable = true
	return nil
}

// Fragment renders the offline problem with its answer checker hooked up when
// answers could be fetched.
func (p *Problem) Fragment() (string, error) {
	return templates.Render("problem.html", templates.ProblemData{
		ProblemID:        p.node.RandomID,
		ProblemHeader:    template.HTML(p.header),  // #nosec:G203 rewritten scraped markup
		Content:          template.HTML(p.content), // #nosec:G203
		PathToRoot:       p.embedRoot(),
		AnswersAvailable: p.answersAvailable,
	})
}
