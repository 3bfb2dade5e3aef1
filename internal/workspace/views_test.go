package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/inkwell/internal/model"
)

func names(cs []model.Character) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestFilteredCharacters(t *testing.T) {
	f := newFixture(t)
	w := f.workspace(t, nil)
	openBook(t, f, w, "B")
	ctx := context.Background()

	for _, c := range []model.Character{
		{Name: "Andra", Description: "pilot"},
		{Name: "Budi", Description: "ANDROID mechanic"},
		{Name: "Citra", Description: "navigator"},
	} {
		_, err := w.AddCharacter(ctx, c)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"Andra", "Budi", "Citra"}, names(w.FilteredCharacters()))

	w.SetSearchTerm("andr")
	assert.Equal(t, []string{"Andra", "Budi"}, names(w.FilteredCharacters()))

	w.SetSearchTerm("  NAV ")
	assert.Equal(t, []string{"Citra"}, names(w.FilteredCharacters()))

	// The filter follows the collection without being reset.
	_, err := w.AddCharacter(ctx, model.Character{Name: "Navi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Citra", "Navi"}, names(w.FilteredCharacters()))
}

func TestTagViews_SkipMissing(t *testing.T) {
	f := newFixture(t)
	w := f.workspace(t, nil)
	openBook(t, f, w, "B")
	ctx := context.Background()

	andra, err := w.AddCharacter(ctx, model.Character{Name: "Andra"})
	require.NoError(t, err)
	budi, err := w.AddCharacter(ctx, model.Character{Name: "Budi"})
	require.NoError(t, err)
	harbor, err := w.AddLocation(ctx, model.Location{Name: "Harbor"})
	require.NoError(t, err)

	chapter, err := w.AddChapter(ctx, model.Chapter{Title: "One", CharacterIDs: []int64{andra, budi, 404}})
	require.NoError(t, err)
	event, err := w.AddPlotEvent(ctx, model.PlotEvent{Title: "Arrival", LocationID: &harbor, CharacterIDs: []int64{budi}})
	require.NoError(t, err)

	assert.Equal(t, []string{"Andra", "Budi"}, names(w.ChapterCharacters(chapter)))
	assert.Equal(t, []string{"Budi"}, names(w.PlotEventCharacters(event)))

	loc, ok := w.PlotEventLocation(event)
	require.True(t, ok)
	assert.Equal(t, "Harbor", loc.Name)

	require.NoError(t, w.DeleteCharacter(ctx, budi))
	require.NoError(t, w.DeleteLocation(ctx, harbor))

	assert.Equal(t, []string{"Andra"}, names(w.ChapterCharacters(chapter)))
	assert.Empty(t, w.PlotEventCharacters(event))
	_, ok = w.PlotEventLocation(event)
	assert.False(t, ok)

	assert.Nil(t, w.ChapterCharacters(9999))
	assert.Nil(t, w.Relationships(9999))
}
