//go:build unit

package ui

import (
	"html/template"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_PanelsAreExclusive(t *testing.T) {
	doc := NewDocument()
	r := NewRouter(doc, DefaultHelp())
	require.True(t, doc.IsVisible(PanelCatalog))

	for _, p := range Panels {
		require.True(t, r.Show(p))
		for _, other := range Panels {
			assert.Equal(t, p == other, doc.IsVisible(other), "showing %s", p)
		}
	}
}

func TestRouter_UnknownPanelIgnored(t *testing.T) {
	doc := NewDocument()
	r := NewRouter(doc, nil)
	r.Show(PanelCart)

	assert.False(t, r.Show(Panel("admin")))
	assert.Equal(t, PanelCart, doc.Active())
}

func TestOpenHelp(t *testing.T) {
	doc := NewDocument()
	r := NewRouter(doc, HelpCatalog{"delivery": {Title: "Delivery <fast>", Body: "<p>2 days</p>"}})

	r.OpenHelp("delivery")
	assert.True(t, doc.IsVisible(PanelHelp))
	assert.Equal(t, template.HTML("Delivery &lt;fast&gt;"), doc.Region(RegionHelpTitle))
	assert.Equal(t, template.HTML("<p>2 days</p>"), doc.Region(RegionHelpBody))
	assert.Equal(t, "top", doc.ScrollTarget())
}

func TestOpenHelp_UnknownTopicLeavesPanelEmpty(t *testing.T) {
	doc := NewDocument()
	r := NewRouter(doc, DefaultHelp())
	r.OpenHelp("order")
	require.NotEmpty(t, doc.Region(RegionHelpBody))

	assert.NotPanics(t, func() { r.OpenHelp("nope") })
	assert.True(t, doc.IsVisible(PanelHelp))
	assert.Empty(t, doc.Region(RegionHelpTitle))
	assert.Empty(t, doc.Region(RegionHelpBody))
}

func TestCards_FadeAndRemove(t *testing.T) {
	doc := NewDocument()
	doc.SetCards([]Card{{BookID: 1, HTML: "a"}, {BookID: 2, HTML: "b"}})

	assert.True(t, doc.ReplaceCard(2, "b2"))
	assert.False(t, doc.ReplaceCard(9, "x"))
	assert.True(t, doc.FadeCard(1))
	assert.True(t, doc.Cards()[0].Fading)

	assert.True(t, doc.RemoveCard(1))
	require.Equal(t, 1, doc.CardCount())
	assert.Equal(t, template.HTML("b2"), doc.Cards()[0].HTML)
	assert.False(t, doc.HasCard(1))
}

func TestGridMessageReplacesCards(t *testing.T) {
	doc := NewDocument()
	doc.SetCards([]Card{{BookID: 1}})
	doc.SetGridMessage("loading")
	assert.Zero(t, doc.CardCount())

	doc.SetCards([]Card{{BookID: 2}})
	assert.Empty(t, doc.GridMessage())
}

func TestSnapshot_ConsumesOneShots(t *testing.T) {
	doc := NewDocument()
	doc.Notify(NoticeLogin, "sign in")
	doc.ScrollTo("catalog-view")
	doc.SetRegion(RegionCart, "cart")

	v := doc.Snapshot()
	require.NotNil(t, v.Notice)
	assert.Equal(t, NoticeLogin, v.Notice.Kind)
	assert.Equal(t, "catalog-view", v.ScrollTo)
	assert.Equal(t, template.HTML("cart"), v.Region("cart"))
	assert.True(t, v.Visible("catalog"))

	again := doc.Snapshot()
	assert.Nil(t, again.Notice)
	assert.Empty(t, again.ScrollTo)
	assert.Equal(t, template.HTML("cart"), again.Region("cart"))
}

func TestOverlays(t *testing.T) {
	doc := NewDocument()
	doc.OpenOverlay(OverlayRegister)
	doc.SetOverlayMessage(Notice{Kind: NoticeError, Text: "taken"})
	doc.OpenOverlay(OverlayLogin)
	assert.Equal(t, OverlayLogin, doc.Overlay())
	assert.Empty(t, doc.OverlayMessage().Text)

	doc.CloseOverlays()
	assert.Equal(t, OverlayNone, doc.Overlay())
}
