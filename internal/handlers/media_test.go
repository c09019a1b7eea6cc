package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/retroludo/retrodex/internal/database/testutil"
	"github.com/retroludo/retrodex/internal/media"
	"github.com/retroludo/retrodex/internal/models"
	"github.com/retroludo/retrodex/internal/services"
)

// stubFetcher returns a URL for the configured {type, region} pair and empty
// for everything else, recording the order of upstream probes.
type stubFetcher struct {
	hitType   string
	hitRegion media.Region
	url       string
	calls     []string
}

func (f *stubFetcher) Fetch(_ context.Context, req media.Request) (string, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s(%s)", req.MediaType, req.Region))
	if req.MediaType == f.hitType && req.Region == f.hitRegion {
		return f.url, nil
	}
	return "", nil
}

type mediaFixture struct {
	router  *gin.Engine
	fetcher *stubFetcher
	console *models.Console
	game    *models.Game
	db      *gorm.DB
}

func newMediaFixture(t *testing.T) *mediaFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	consoleSvc, err := services.NewConsoleService(db)
	require.NoError(t, err)
	gameSvc, err := services.NewGameService(db)
	require.NoError(t, err)

	consoleSourceID := int64(75)
	console, err := consoleSvc.Create(context.Background(), services.CreateConsoleInput{
		Name:     "Mega Drive",
		SourceID: &consoleSourceID,
	})
	require.NoError(t, err)

	gameSourceID := int64(4321)
	game, err := gameSvc.Create(context.Background(), services.CreateGameInput{
		ConsoleID: console.ID,
		Title:     "Comix Zone",
		SourceID:  &gameSourceID,
	})
	require.NoError(t, err)

	store, err := media.NewDatabaseStore(db)
	require.NoError(t, err)

	fetcher := &stubFetcher{
		hitType:   "wheel",
		hitRegion: media.RegionWorld,
		url:       "https://cdn.example.org/wheel-wor.png",
	}

	tags, err := media.NewTagSet(nil)
	require.NoError(t, err)
	resolver, err := media.NewResolver(store, fetcher, tags, media.DefaultCacheTTL)
	require.NoError(t, err)

	handler, err := NewMediaHandler(MediaHandlerConfig{
		Consoles: consoleSvc,
		Games:    gameSvc,
		Resolver: resolver,
		Store:    store,
	})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/api/consoles/:id/media", handler.ConsoleMedia)
	r.GET("/api/games/:id/media", handler.GameMedia)
	r.POST("/api/admin/media/invalidate", handler.Invalidate)
	r.POST("/api/admin/media/purge", handler.Purge)

	return &mediaFixture{router: r, fetcher: fetcher, console: console, game: game, db: db}
}

func (f *mediaFixture) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func (f *mediaFixture) post(t *testing.T, path, payload string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestGameMediaResolvesInPriorityOrder(t *testing.T) {
	f := newMediaFixture(t)

	code, body := f.get(t, "/api/games/"+f.game.ID+"/media?types=box-2D,wheel&regions=eu,wor")
	require.Equal(t, http.StatusOK, code)

	data := body["data"].(map[string]any)
	require.Equal(t, "https://cdn.example.org/wheel-wor.png", data["url"])

	// Type-major, region-minor: both box-2D slots are probed before wheel.
	require.Equal(t, []string{"box-2D(eu)", "box-2D(wor)", "wheel(eu)", "wheel(wor)"}, f.fetcher.calls)

	// The winner and the preceding misses are now cached; a second request
	// answers from the store without another probe.
	f.fetcher.calls = nil
	code, body = f.get(t, "/api/games/"+f.game.ID+"/media?types=box-2D,wheel&regions=eu,wor")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "https://cdn.example.org/wheel-wor.png", body["data"].(map[string]any)["url"])
	require.Empty(t, f.fetcher.calls)
}

func TestConsoleMediaAbsenceReturnsNullURL(t *testing.T) {
	f := newMediaFixture(t)

	// The stub only answers for wheel(wor); a box-2D only request finds nothing.
	code, body := f.get(t, "/api/consoles/"+f.console.Slug+"/media?types=box-2D&regions=fr")
	require.Equal(t, http.StatusOK, code)
	require.Nil(t, body["data"].(map[string]any)["url"])
}

func TestMediaCacheOnlyNeverFetches(t *testing.T) {
	f := newMediaFixture(t)

	code, body := f.get(t, "/api/games/"+f.game.ID+"/media?types=wheel&regions=wor&cache_only=1")
	require.Equal(t, http.StatusOK, code)
	require.Nil(t, body["data"].(map[string]any)["url"])
	require.Empty(t, f.fetcher.calls)
}

func TestMediaRejectsUnknownRegion(t *testing.T) {
	f := newMediaFixture(t)

	code, _ := f.get(t, "/api/games/"+f.game.ID+"/media?regions=xx")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestMediaRejectsUnknownType(t *testing.T) {
	f := newMediaFixture(t)

	code, _ := f.get(t, "/api/games/"+f.game.ID+"/media?types=posterized")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestMediaUnknownEntityIs404(t *testing.T) {
	f := newMediaFixture(t)

	code, _ := f.get(t, "/api/games/no-such-game/media")
	require.Equal(t, http.StatusNotFound, code)
	code, _ = f.get(t, "/api/consoles/no-such-console/media")
	require.Equal(t, http.StatusNotFound, code)
}

func TestMediaInvalidateForcesRefetch(t *testing.T) {
	f := newMediaFixture(t)

	code, _ := f.get(t, "/api/games/"+f.game.ID+"/media?types=wheel&regions=wor")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, f.fetcher.calls, 1)

	payload := fmt.Sprintf(`{"kind":"game","entity_id":%q}`, f.game.ID)
	code, _ = f.post(t, "/api/admin/media/invalidate", payload)
	require.Equal(t, http.StatusOK, code)

	f.fetcher.calls = nil
	code, _ = f.get(t, "/api/games/"+f.game.ID+"/media?types=wheel&regions=wor")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, f.fetcher.calls, 1, "invalidation frees the slot for refetch")
}

// failingStore stands in for an unreachable persistence layer.
type failingStore struct {
	err error
}

func (s *failingStore) Lookup(context.Context, media.EntryKey) (*models.MediaCacheEntry, error) {
	return nil, s.err
}

func (s *failingStore) Upsert(context.Context, media.EntryKey, string, int64, time.Duration) error {
	return s.err
}

func (s *failingStore) Invalidate(context.Context, media.Kind, string) error {
	return s.err
}

func (s *failingStore) PurgeExpired(context.Context, time.Duration) (int64, error) {
	return 0, s.err
}

func TestMediaStoreFailureIsServerError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	consoleSvc, err := services.NewConsoleService(db)
	require.NoError(t, err)
	gameSvc, err := services.NewGameService(db)
	require.NoError(t, err)

	sourceID := int64(75)
	console, err := consoleSvc.Create(context.Background(), services.CreateConsoleInput{
		Name:     "Mega Drive",
		SourceID: &sourceID,
	})
	require.NoError(t, err)

	store := &failingStore{err: errors.New("dial tcp db01:5432: connection refused")}
	tags, err := media.NewTagSet(nil)
	require.NoError(t, err)
	resolver, err := media.NewResolver(store, &stubFetcher{}, tags, media.DefaultCacheTTL)
	require.NoError(t, err)

	handler, err := NewMediaHandler(MediaHandlerConfig{
		Consoles: consoleSvc,
		Games:    gameSvc,
		Resolver: resolver,
		Store:    store,
	})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/api/consoles/:id/media", handler.ConsoleMedia)

	req := httptest.NewRequest(http.MethodGet, "/api/consoles/"+console.ID+"/media", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errPayload := body["error"].(map[string]any)
	require.Equal(t, "INTERNAL_SERVER_ERROR", errPayload["code"])
	require.NotContains(t, errPayload["message"], "db01", "store failure details must not reach clients")
}

func TestGameMediaConsoleLookupFailureIsServerError(t *testing.T) {
	f := newMediaFixture(t)

	// Break only the consoles table; the game row itself still loads, so the
	// failure happens while resolving the owning console's upstream id.
	require.NoError(t, f.db.Migrator().RenameTable("consoles", "consoles_archive"))

	code, body := f.get(t, "/api/games/"+f.game.ID+"/media?types=wheel&regions=wor")
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "INTERNAL_SERVER_ERROR", body["error"].(map[string]any)["code"])
	require.Empty(t, f.fetcher.calls, "a failed console lookup must not fall through to resolution")
}

func TestMediaPurgeValidatesDuration(t *testing.T) {
	f := newMediaFixture(t)

	code, _ := f.post(t, "/api/admin/media/purge", `{"older_than":"not-a-duration"}`)
	require.Equal(t, http.StatusBadRequest, code)

	code, body := f.post(t, "/api/admin/media/purge", `{}`)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 0, body["data"].(map[string]any)["purged"])
}
