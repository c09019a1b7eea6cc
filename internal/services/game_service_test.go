package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/retroludo/retrodex/internal/database/testutil"
)

func TestGameService_CreateRequiresConsole(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewGameService(db)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateGameInput{ConsoleID: "missing", Title: "Sonic"})
	require.ErrorIs(t, err, ErrConsoleNotFound)
}

func TestGameService_CreateAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	consoles, err := NewConsoleService(db)
	require.NoError(t, err)
	games, err := NewGameService(db)
	require.NoError(t, err)

	ctx := context.Background()

	console, err := consoles.Create(ctx, CreateConsoleInput{Name: "Mega Drive", Manufacturer: "Sega"})
	require.NoError(t, err)

	sourceID := int64(4321)
	created, err := games.Create(ctx, CreateGameInput{
		ConsoleID:   console.ID,
		Title:       "Streets of Rage 2",
		Genre:       "Beat'em up",
		Developer:   "Sega",
		ReleaseYear: 1992,
		Players:     2,
		SourceID:    &sourceID,
		Attributes:  datatypes.JSON([]byte(`{"alt_titles":["Bare Knuckle II"]}`)),
	})
	require.NoError(t, err)
	require.Equal(t, "mega-drive-streets-of-rage-2", created.Slug)

	_, err = games.Create(ctx, CreateGameInput{ConsoleID: console.ID, Title: "Streets of Rage 2"})
	require.ErrorIs(t, err, ErrGameSlugTaken)

	byConsole, total, err := games.List(ctx, ListGamesOptions{ConsoleID: console.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, byConsole, 1)

	bySearch, _, err := games.List(ctx, ListGamesOptions{Search: "streets"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)

	none, _, err := games.List(ctx, ListGamesOptions{Genre: "RPG"})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestGameService_UpdateAndDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	consoles, err := NewConsoleService(db)
	require.NoError(t, err)
	games, err := NewGameService(db)
	require.NoError(t, err)

	ctx := context.Background()

	console, err := consoles.Create(ctx, CreateConsoleInput{Name: "SNES"})
	require.NoError(t, err)

	game, err := games.Create(ctx, CreateGameInput{ConsoleID: console.ID, Title: "F-Zero"})
	require.NoError(t, err)

	rating := float32(4.5)
	sourceID := int64(1337)
	updated, err := games.Update(ctx, game.Slug, UpdateGameInput{Rating: &rating, SourceID: &sourceID})
	require.NoError(t, err)
	require.EqualValues(t, 4.5, updated.Rating)
	require.NotNil(t, updated.SourceID)
	require.EqualValues(t, 1337, *updated.SourceID)

	require.NoError(t, games.Delete(ctx, game.ID))
	_, err = games.Get(ctx, game.ID)
	require.ErrorIs(t, err, ErrGameNotFound)
}
