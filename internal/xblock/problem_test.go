package xblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzim/openedx2zim/internal/htmlproc"
)

func parseProblem(t *testing.T, markup string) *htmlproc.Selection {
	t.Helper()

	doc, err := htmlproc.ParsePage(markup)
	require.NoError(t, err, "Setup: could not parse problem markup")
	problem := doc.Find("div", "problem")
	require.NotNil(t, problem, "Setup: markup should contain a problem div")
	return problem
}

func TestAnswerCandidates(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		markup string

		wantOptions      int
		wantCombinations int
	}{
		"Radio group yields one candidate per option": {
			markup: `<div class="problem">
				<input type="radio" name="input_1" id="input_1_choice_0">
				<input type="radio" name="input_1" id="input_1_choice_1">
				<input type="radio" name="input_1" id="input_1_choice_2">
			</div>`,
			wantOptions:      3,
			wantCombinations: 3,
		},
		"Checkbox group yields every non-empty subset": {
			markup: `<div class="problem">
				<input type="checkbox" name="input_1" id="input_1_choice_0">
				<input type="checkbox" name="input_1" id="input_1_choice_1">
				<input type="checkbox" name="input_1" id="input_1_choice_2">
			</div>`,
			wantOptions:      3,
			wantCombinations: 7,
		},

		"Single radio is not fetchable": {
			markup: `<div class="problem"><input type="radio" name="input_1" id="input_1_choice_0"></div>`,
		},
		"Too many checkboxes are not fetchable": {
			markup: `<div class="problem">
				<input type="checkbox" id="c0"><input type="checkbox" id="c1">
				<input type="checkbox" id="c2"><input type="checkbox" id="c3">
				<input type="checkbox" id="c4"><input type="checkbox" id="c5">
			</div>`,
		},
		"Text input is not fetchable": {
			markup: `<div class="problem"><input type="text" name="input_1" id="input_1"></div>`,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			options, combinations := answerCandidates(parseProblem(t, tc.markup))
			if tc.wantOptions == 0 {
				assert.Nil(t, options, "Problem should not be fetchable")
				assert.Nil(t, combinations, "No candidates should be generated")
				return
			}
			assert.Len(t, options, tc.wantOptions, "Unexpected number of options")
			assert.Len(t, combinations, tc.wantCombinations, "Unexpected number of candidates")
		})
	}
}

func TestCleanProblemContent(t *testing.T) {
	t.Parallel()

	doc, err := htmlproc.ParsePage(`<div class="problem">
		<div class="notification">Correct!</div>
		<input type="radio" id="c0" checked value="choice_0">
		<label class="response-label choicegroup_correct field-label">Choice 0</label>
		<span class="message">Well done</span>
		<div class="action"><button>Submit</button></div>
		<span class="unanswered"></span>
		<span class="sr">screen reader text</span>
	</div>`)
	require.NoError(t, err, "Setup: could not parse markup")

	cleanProblemContent(doc)

	assert.Nil(t, doc.Find("div", "notification"), "Notifications should be removed")
	assert.Nil(t, doc.Find("span", "message"), "Grading messages should be removed")
	assert.Nil(t, doc.Find("div", "action"), "Submission controls should be removed")
	assert.Nil(t, doc.Find("span", "unanswered"), "Status icons should be removed")
	assert.Nil(t, doc.Find("span", "sr"), "Screen reader leftovers should be removed")

	input := doc.Find("input", "")
	require.NotNil(t, input, "Input should survive the cleanup")
	assert.Empty(t, input.Attr("value"), "Previous answer values should be cleared")
	assert.False(t, input.HasAttr("checked"), "Previous selections should be cleared")

	label := doc.Find("label", "response-label")
	require.NotNil(t, label, "Label should survive the cleanup")
	assert.NotContains(t, label.Classes(), "choicegroup_correct", "Grading class should be stripped")
	assert.Contains(t, label.Classes(), "field-label", "Other classes should be kept")
}
