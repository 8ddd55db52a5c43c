package report

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/runstream/store"
)

func testRecords(t *testing.T) (rootID uuid.UUID, records []*store.Record) {
	t.Helper()
	rootID = uuid.New()
	toolID := uuid.New()
	llmID := uuid.New()
	base := time.Now()

	records = []*store.Record{
		{
			ID: rootID, RootID: rootID,
			Kind: "chain", Name: "pipeline",
			StartedAt: base, EndedAt: base.Add(3 * time.Second),
		},
		{
			ID: toolID, RootID: rootID, ParentID: &rootID,
			Kind: "tool", Name: "calc",
			Error:     "division by zero",
			StartedAt: base.Add(time.Second), EndedAt: base.Add(2 * time.Second),
		},
		{
			ID: llmID, RootID: rootID, ParentID: &rootID,
			Kind: "llm", Name: "gpt",
			StartedAt: base.Add(500 * time.Millisecond), EndedAt: base.Add(time.Second),
		},
	}
	return rootID, records
}

func TestBuildTree(t *testing.T) {
	rootID, records := testRecords(t)

	roots := BuildTree(records)
	require.Len(t, roots, 1)
	assert.Equal(t, rootID, roots[0].Record.ID)

	require.Len(t, roots[0].Children, 2)
	// Siblings come back in start order even though the input is not sorted.
	assert.Equal(t, "gpt", roots[0].Children[0].Record.Name)
	assert.Equal(t, "calc", roots[0].Children[1].Record.Name)
}

func TestBuildTree_OrphanBecomesRoot(t *testing.T) {
	missing := uuid.New()
	rec := &store.Record{
		ID: uuid.New(), RootID: missing, ParentID: &missing,
		Kind: "llm", Name: "gpt",
		StartedAt: time.Now(), EndedAt: time.Now(),
	}

	roots := BuildTree([]*store.Record{rec})
	require.Len(t, roots, 1)
	assert.Equal(t, rec.ID, roots[0].Record.ID)
}

func TestRenderMarkdown(t *testing.T) {
	_, records := testRecords(t)

	md := RenderMarkdown(BuildTree(records))
	assert.Contains(t, md, "# Run Report")
	assert.Contains(t, md, "## pipeline (chain)")
	assert.Contains(t, md, "### Steps")
	assert.Contains(t, md, "gpt")
	assert.Contains(t, md, "### Failures")
	assert.Contains(t, md, "division by zero")
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(nil)
	assert.Contains(t, md, "No runs recorded.")
}

func TestRenderHTML(t *testing.T) {
	_, records := testRecords(t)

	rendered := RenderHTML(BuildTree(records))
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	require.NoError(t, err)

	assert.Equal(t, "Run Report", doc.Find("h1").First().Text())
	assert.Contains(t, doc.Find("h2").First().Text(), "pipeline")
	assert.GreaterOrEqual(t, doc.Find("li").Length(), 2)
}

func TestRenderHTML_SanitizesNames(t *testing.T) {
	id := uuid.New()
	rec := &store.Record{
		ID: id, RootID: id,
		Kind: "chain", Name: `<script>alert("x")</script>pipeline`,
		StartedAt: time.Now(), EndedAt: time.Now(),
	}

	rendered := RenderHTML(BuildTree([]*store.Record{rec}))
	assert.NotContains(t, rendered, "<script>")
}
