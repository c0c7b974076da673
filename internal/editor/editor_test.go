package editor

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/folio/internal/appstate"
	"github.com/MarcoPoloResearchLab/folio/internal/cards"
	"github.com/MarcoPoloResearchLab/folio/internal/carousel"
	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/imaging"
	"github.com/MarcoPoloResearchLab/folio/internal/kvstore"
	"github.com/MarcoPoloResearchLab/folio/internal/storage"
)

var fixedTime = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return fixedTime
}

type staticSink struct {
	mu    sync.Mutex
	calls int
}

func (s *staticSink) Ingest(_ context.Context, file imaging.File) (content.ImageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return content.ImageRef("/uploads/" + file.Name), nil
}

// gatedSink blocks each ingestion until its file name is released.
type gatedSink struct {
	entered chan string
	release map[string]chan struct{}
}

func newGatedSink(names ...string) *gatedSink {
	sink := &gatedSink{entered: make(chan string, len(names)), release: make(map[string]chan struct{}, len(names))}
	for _, name := range names {
		sink.release[name] = make(chan struct{})
	}
	return sink
}

func (s *gatedSink) Ingest(ctx context.Context, file imaging.File) (content.ImageRef, error) {
	s.entered <- file.Name
	select {
	case <-s.release[file.Name]:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return content.ImageRef("/uploads/" + file.Name), nil
}

type recordingRecorder struct {
	mu         sync.Mutex
	operations []string
	failures   []string
	busy       []bool
}

func (r *recordingRecorder) ObserveOperation(operation string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations = append(r.operations, operation)
	if err != nil {
		r.failures = append(r.failures, operation)
	}
}

func (r *recordingRecorder) SetBusy(busy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = append(r.busy, busy)
}

func newLocalAdapter(t *testing.T, store kvstore.Store, quota int64) *storage.LocalAdapter {
	t.Helper()
	adapter, err := storage.NewLocalAdapter(storage.LocalConfig{Store: store, QuotaBytes: quota, Clock: fixedClock})
	if err != nil {
		t.Fatalf("local adapter: %v", err)
	}
	return adapter
}

func newEditor(t *testing.T, cfg Config) *Editor {
	t.Helper()
	if cfg.Clock == nil {
		cfg.Clock = fixedClock
	}
	if cfg.Images == nil {
		cfg.Images = &staticSink{}
	}
	editor, err := New(cfg)
	if err != nil {
		t.Fatalf("new editor: %v", err)
	}
	return editor
}

func pngFile(name string) imaging.File {
	return imaging.File{Name: name, MediaType: "image/png", Size: 4, Content: strings.NewReader("data")}
}

func handleAt(t *testing.T, editor *Editor, kind content.CardKind, index int) appstate.Handle {
	t.Helper()
	collection := editor.State().Collections[kind]
	if index >= len(collection) {
		t.Fatalf("%s collection has %d cards, wanted index %d", kind, len(collection), index)
	}
	return collection[index].Handle
}

func TestNewSeedsCollectionsAndContinuesCounters(t *testing.T) {
	editor := newEditor(t, Config{})
	state := editor.State()

	if state.EditMode {
		t.Fatalf("edit mode must start disabled")
	}
	if len(state.Collections[content.CardKindBusiness]) != 6 || len(state.Collections[content.CardKindWork]) != 4 || len(state.Collections[content.CardKindLogo]) != 5 {
		t.Fatalf("unexpected seeded collections %#v", state.Collections)
	}
	if state.NextSequence[content.CardKindBusiness] != 7 || state.NextSequence[content.CardKindWork] != 5 || state.NextSequence[content.CardKindLogo] != 6 {
		t.Fatalf("unexpected counters %#v", state.NextSequence)
	}

	editor.Toggle()
	handle, err := editor.AddCard(context.Background(), content.CardKindBusiness, pngFile("new.png"), cards.Metadata{})
	if err != nil {
		t.Fatalf("add card: %v", err)
	}
	state = editor.State()
	business := state.Collections[content.CardKindBusiness]
	added := business[len(business)-1]
	if added.Handle != handle || added.AltText != "Business Card 7" || added.Image != "/uploads/new.png" {
		t.Fatalf("unexpected new card %#v", added)
	}
	if state.Carousels[content.CardKindBusiness].ItemCount != 7 {
		t.Fatalf("carousel must track the new card")
	}
}

func TestMutationsRequireEditMode(t *testing.T) {
	sink := &staticSink{}
	editor := newEditor(t, Config{Images: sink})
	ctx := context.Background()
	handle := handleAt(t, editor, content.CardKindWork, 0)
	before := editor.State()

	if _, err := editor.AddCard(ctx, content.CardKindBusiness, pngFile("a.png"), cards.Metadata{}); !errors.Is(err, cards.ErrEditModeDisabled) {
		t.Fatalf("add card: expected edit mode error, got %v", err)
	}
	if _, err := editor.ReplaceImage(ctx, content.CardKindWork, handle, pngFile("b.png")); !errors.Is(err, cards.ErrEditModeDisabled) {
		t.Fatalf("replace image: expected edit mode error, got %v", err)
	}
	if _, err := editor.ReplaceAboutPhoto(ctx, pngFile("c.png")); !errors.Is(err, cards.ErrEditModeDisabled) {
		t.Fatalf("replace about photo: expected edit mode error, got %v", err)
	}
	if err := editor.EditText(content.CardKindWork, handle, cards.FieldTitle, "x"); !errors.Is(err, cards.ErrEditModeDisabled) {
		t.Fatalf("edit text: expected edit mode error, got %v", err)
	}
	if err := editor.EditLink(content.CardKindWork, handle, "https://example.org"); !errors.Is(err, cards.ErrEditModeDisabled) {
		t.Fatalf("edit link: expected edit mode error, got %v", err)
	}
	if err := editor.RemoveCard(content.CardKindWork, handle); !errors.Is(err, cards.ErrEditModeDisabled) {
		t.Fatalf("remove card: expected edit mode error, got %v", err)
	}
	if err := editor.EditRegion("#heroTitle", "changed"); !errors.Is(err, cards.ErrEditModeDisabled) {
		t.Fatalf("edit region: expected edit mode error, got %v", err)
	}

	if sink.calls != 0 {
		t.Fatalf("no file may be ingested outside edit mode, got %d calls", sink.calls)
	}
	if !reflect.DeepEqual(before, editor.State()) {
		t.Fatalf("rejected mutations must leave state untouched")
	}
}

func TestEditRegionSanitizesAndRejectsCardText(t *testing.T) {
	editor := newEditor(t, Config{})
	editor.Toggle()

	if err := editor.EditRegion("#heroTitle", `Hello <script>alert(1)</script><em>world</em>`); err != nil {
		t.Fatalf("edit region: %v", err)
	}
	doc, err := editor.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if doc.EditableRegions[0].Locator != "#heroTitle" || doc.EditableRegions[0].RichContent != "Hello <em>world</em>" {
		t.Fatalf("unexpected sanitized region %#v", doc.EditableRegions[0])
	}
	if err := editor.EditRegion("#missing", "x"); !errors.Is(err, ErrRegionNotEditable) {
		t.Fatalf("expected region not editable, got %v", err)
	}
	if err := editor.EditRegion("#adminPanel", "x"); !errors.Is(err, ErrRegionNotEditable) {
		t.Fatalf("non-editable elements must be rejected, got %v", err)
	}
}

func TestSaveLoadRoundTripReproducesContent(t *testing.T) {
	store := kvstore.NewMemory()
	ctx := context.Background()

	source := newEditor(t, Config{Storage: newLocalAdapter(t, store, 0)})
	source.Toggle()
	if _, err := source.AddCard(ctx, content.CardKindWork, pngFile("shop.png"), cards.Metadata{Title: "Shop"}); err != nil {
		t.Fatalf("add work card: %v", err)
	}
	if err := source.EditLink(content.CardKindWork, handleAt(t, source, content.CardKindWork, 1), "https://example.org/app"); err != nil {
		t.Fatalf("edit link: %v", err)
	}
	if err := source.RemoveCard(content.CardKindLogo, handleAt(t, source, content.CardKindLogo, 0)); err != nil {
		t.Fatalf("remove logo: %v", err)
	}
	if _, err := source.ReplaceAboutPhoto(ctx, pngFile("me.png")); err != nil {
		t.Fatalf("replace about photo: %v", err)
	}
	if err := source.EditRegion("p.about-text.editable:nth-of-type(2)", "Second <strong>paragraph</strong>"); err != nil {
		t.Fatalf("edit region: %v", err)
	}
	if _, err := source.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	target := newEditor(t, Config{Storage: newLocalAdapter(t, store, 0)})
	report, found, err := target.Load(ctx)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if len(report.SkippedRegions) != 0 || !report.AboutPhoto || len(report.Collections) != 3 {
		t.Fatalf("unexpected restore report %#v", report)
	}

	want, _ := source.Snapshot()
	got, _ := target.Snapshot()
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("restored snapshot differs\nwant %#v\ngot  %#v", want, got)
	}
	work := target.State().Collections[content.CardKindWork]
	if work[1].Link != "https://example.org/app" || !work[1].OpenInNewContext {
		t.Fatalf("restored link must open in a new context, got %#v", work[1])
	}
	if target.EditMode() {
		t.Fatalf("loading must not enable edit mode")
	}
}

func TestLoadWithNothingStored(t *testing.T) {
	editor := newEditor(t, Config{Storage: newLocalAdapter(t, kvstore.NewMemory(), 0)})
	before := editor.State()
	if _, found, err := editor.Load(context.Background()); err != nil || found {
		t.Fatalf("expected nothing stored, found=%v err=%v", found, err)
	}
	if !reflect.DeepEqual(before, editor.State()) {
		t.Fatalf("an empty load must not change the page")
	}
}

func TestRestoreIsBestEffort(t *testing.T) {
	editor := newEditor(t, Config{})
	legacy := `{
		"editableContent": [
			{"selector": "#heroTitle", "content": "Restored <script>x()</script>title"},
			{"selector": "#removedSection", "content": "gone"},
			{"selector": "p.about-text.editable", "content": "ambiguous"}
		],
		"bizcards": [{"id": "biz1", "src": "/uploads/a.png", "alt": "Only card"}],
		"workcards": []
	}`
	doc, err := content.DecodeDocument([]byte(legacy))
	if err != nil {
		t.Fatalf("decode legacy: %v", err)
	}

	report := editor.Restore(doc)
	if report.RegionsRestored != 1 || len(report.SkippedRegions) != 2 {
		t.Fatalf("unexpected report %#v", report)
	}
	if report.SkippedRegions[0].Locator != "#removedSection" || report.SkippedRegions[1].Locator != "p.about-text.editable" {
		t.Fatalf("unexpected skipped regions %#v", report.SkippedRegions)
	}
	if !reflect.DeepEqual(report.Collections, []content.CardKind{content.CardKindBusiness, content.CardKindWork}) {
		t.Fatalf("unexpected restored collections %#v", report.Collections)
	}

	state := editor.State()
	if business := state.Collections[content.CardKindBusiness]; len(business) != 1 || business[0].AltText != "Only card" {
		t.Fatalf("business cards must be replaced, got %#v", business)
	}
	if len(state.Collections[content.CardKindWork]) != 0 {
		t.Fatalf("an empty collection must clear the live one")
	}
	if len(state.Collections[content.CardKindLogo]) != 5 {
		t.Fatalf("an absent collection must stay untouched")
	}
	if state.Carousels[content.CardKindWork].CurrentIndex != 0 || state.Carousels[content.CardKindWork].Offset != 0 {
		t.Fatalf("emptied carousel must reset, got %#v", state.Carousels[content.CardKindWork])
	}

	snapshot, _ := editor.Snapshot()
	if snapshot.EditableRegions[0].RichContent != "Restored title" {
		t.Fatalf("restored regions must be sanitized, got %q", snapshot.EditableRegions[0].RichContent)
	}
}

func TestToggleTwiceRestoresPresentation(t *testing.T) {
	editor := newEditor(t, Config{})
	ctx := context.Background()

	editor.Toggle()
	if _, err := editor.AddCard(ctx, content.CardKindWork, pngFile("w.png"), cards.Metadata{Link: "https://example.org"}); err != nil {
		t.Fatalf("add card: %v", err)
	}
	editor.Toggle()

	before, err := editor.Render(true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	affordancesBefore := editor.Affordances()

	editor.Toggle()
	editing := editor.Affordances()
	for handle, actions := range editing.Cards {
		seen := make(map[string]bool, len(actions))
		for _, action := range actions {
			if seen[action] {
				t.Fatalf("card %d carries %q twice: %v", handle, action, actions)
			}
			seen[action] = true
		}
		if !seen[ActionReplaceImage] {
			t.Fatalf("card %d must be replaceable in edit mode", handle)
		}
	}
	editor.Toggle()

	after, err := editor.Render(true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("toggling twice must render the same page")
	}
	if !reflect.DeepEqual(affordancesBefore, editor.Affordances()) {
		t.Fatalf("toggling twice must yield the same affordances")
	}
}

func TestAffordancesFollowWindowWidth(t *testing.T) {
	editor := newEditor(t, Config{})
	business := handleAt(t, editor, content.CardKindBusiness, 0)
	linkedWork := handleAt(t, editor, content.CardKindWork, 0)
	unlinkedWork := handleAt(t, editor, content.CardKindWork, 1)

	wide := editor.Affordances()
	if len(wide.Cards[business]) != 0 {
		t.Fatalf("business cards do not open a modal on wide windows, got %v", wide.Cards[business])
	}
	if !reflect.DeepEqual(wide.Cards[linkedWork], []string{ActionOpenDetail, ActionNavigate}) {
		t.Fatalf("unexpected linked work actions %v", wide.Cards[linkedWork])
	}
	if !reflect.DeepEqual(wide.Cards[unlinkedWork], []string{ActionOpenDetail}) {
		t.Fatalf("a card without a link must not navigate, got %v", wide.Cards[unlinkedWork])
	}

	if err := editor.ResizeViewport(Viewport{WindowWidth: 600}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	narrow := editor.Affordances()
	if !reflect.DeepEqual(narrow.Cards[business], []string{ActionOpenModal}) {
		t.Fatalf("business cards open a modal on narrow windows, got %v", narrow.Cards[business])
	}
	if editor.State().Carousels[content.CardKindBusiness].LeftPadding != 16 {
		t.Fatalf("narrow windows use the smaller padding")
	}
}

func TestCarouselStaysClampedThroughEdits(t *testing.T) {
	editor := newEditor(t, Config{})
	editor.Toggle()
	geometry := map[content.CardKind]carousel.Geometry{
		content.CardKindBusiness: {CardWidth: 300, ViewportWidth: 700},
	}
	if err := editor.ResizeViewport(Viewport{WindowWidth: 1280, Geometries: geometry}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	for range 10 {
		if _, err := editor.Advance(content.CardKindBusiness, 1); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	state := editor.State().Carousels[content.CardKindBusiness]
	if state.CurrentIndex != state.MaxSteps || state.MaxSteps == 0 {
		t.Fatalf("advance must stop at the last step, got %#v", state)
	}

	for _, card := range editor.State().Collections[content.CardKindBusiness][1:] {
		if err := editor.RemoveCard(content.CardKindBusiness, card.Handle); err != nil {
			t.Fatalf("remove: %v", err)
		}
	}
	state = editor.State().Carousels[content.CardKindBusiness]
	if state.CurrentIndex != 0 || state.MaxSteps != 0 || state.Offset != 0 {
		t.Fatalf("removing cards must re-clamp the carousel, got %#v", state)
	}

	if _, err := editor.Advance(content.CardKind("gallery"), 1); !errors.Is(err, content.ErrInvalidCardKind) {
		t.Fatalf("expected invalid kind, got %v", err)
	}
}

func TestCarouselReportWithoutWindowWidthKeepsKnownWindow(t *testing.T) {
	editor := newEditor(t, Config{})
	if err := editor.ResizeViewport(Viewport{WindowWidth: 1280}); err != nil {
		t.Fatalf("resize window: %v", err)
	}
	geometry := map[content.CardKind]carousel.Geometry{
		content.CardKindWork: {CardWidth: 300, ViewportWidth: 640},
	}
	if err := editor.ResizeViewport(Viewport{Geometries: geometry}); err != nil {
		t.Fatalf("resize carousel: %v", err)
	}

	state := editor.State()
	work := state.Carousels[content.CardKindWork]
	if state.WindowWidth != 1280 || work.LeftPadding != 24 {
		t.Fatalf("padding must follow the known window width, got window=%d padding=%d", state.WindowWidth, work.LeftPadding)
	}
	// 4 cards: (4*320-20 - (640-24)) / 320 rounds up to 3.
	if work.ItemCount != 4 || work.MaxSteps != 3 {
		t.Fatalf("the last card must stay reachable, got %#v", work)
	}
}

func TestEditLinkRejectsScriptURLs(t *testing.T) {
	editor := newEditor(t, Config{})
	editor.Toggle()
	handle := handleAt(t, editor, content.CardKindWork, 0)
	before := editor.State().Collections[content.CardKindWork][0].Link

	for _, raw := range []string{"javascript:alert(document.cookie)", "data:text/html,<script>alert(1)</script>"} {
		if err := editor.EditLink(content.CardKindWork, handle, raw); !errors.Is(err, content.ErrInvalidURL) {
			t.Fatalf("expected invalid url for %q, got %v", raw, err)
		}
	}
	if after := editor.State().Collections[content.CardKindWork][0].Link; after != before {
		t.Fatalf("rejected links must keep the prior value, got %q want %q", after, before)
	}

	restored := editor.Restore(content.SiteDocument{
		WorkCards: []content.WorkCard{{ID: "work1", Image: "/uploads/a.png", Link: "javascript:alert(1)"}},
	})
	if len(restored.Collections) != 1 {
		t.Fatalf("expected work collection restored, got %#v", restored)
	}
	if link := editor.State().Collections[content.CardKindWork][0].Link; link != content.NoLink {
		t.Fatalf("restored script links must be dropped, got %q", link)
	}
	body, err := editor.Render(false)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(strings.ToLower(string(body)), "javascript:") {
		t.Fatalf("rendered page must not carry script urls")
	}
}

func TestConcurrentReplacementsTargetTheirOwnCards(t *testing.T) {
	sink := newGatedSink("first.png", "second.png")
	editor := newEditor(t, Config{Images: sink})
	editor.Toggle()
	first := handleAt(t, editor, content.CardKindBusiness, 0)
	second := handleAt(t, editor, content.CardKindBusiness, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wait sync.WaitGroup
	errs := make(chan error, 2)
	for _, job := range []struct {
		handle appstate.Handle
		name   string
	}{{first, "first.png"}, {second, "second.png"}} {
		wait.Add(1)
		go func() {
			defer wait.Done()
			_, err := editor.ReplaceImage(ctx, content.CardKindBusiness, job.handle, pngFile(job.name))
			errs <- err
		}()
	}

	for range 2 {
		select {
		case <-sink.entered:
		case <-ctx.Done():
			t.Fatalf("ingestions did not start")
		}
	}
	if !editor.Busy() {
		t.Fatalf("editor must report busy while ingesting")
	}
	close(sink.release["second.png"])
	close(sink.release["first.png"])
	wait.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("replace image: %v", err)
		}
	}

	business := editor.State().Collections[content.CardKindBusiness]
	if business[0].Image != "/uploads/first.png" || business[1].Image != "/uploads/second.png" {
		t.Fatalf("images landed on the wrong cards: %q %q", business[0].Image, business[1].Image)
	}
	if editor.Busy() {
		t.Fatalf("busy must clear once ingestion completes")
	}
}

func TestReplaceImageForRemovedCard(t *testing.T) {
	editor := newEditor(t, Config{})
	editor.Toggle()
	handle := handleAt(t, editor, content.CardKindLogo, 0)
	if err := editor.RemoveCard(content.CardKindLogo, handle); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := editor.ReplaceImage(context.Background(), content.CardKindLogo, handle, pngFile("x.png")); !errors.Is(err, cards.ErrCardNotFound) {
		t.Fatalf("expected card not found, got %v", err)
	}
}

func TestSaveSurfacesQuotaGuidanceAndReleasesBusy(t *testing.T) {
	recorder := &recordingRecorder{}
	store := kvstore.NewMemory()
	editor := newEditor(t, Config{Storage: newLocalAdapter(t, store, 256), Recorder: recorder})

	_, err := editor.Save(context.Background())
	if !storage.IsQuotaExceeded(err) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "reduce the number or size of images") {
		t.Fatalf("quota error must carry guidance, got %q", err.Error())
	}
	if editor.Busy() {
		t.Fatalf("busy must clear after a failed save")
	}
	if size, _ := store.Size(context.Background()); size != 0 {
		t.Fatalf("nothing may be written over quota, got %d bytes", size)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if !reflect.DeepEqual(recorder.busy, []bool{true, false}) {
		t.Fatalf("unexpected busy transitions %v", recorder.busy)
	}
	if !reflect.DeepEqual(recorder.failures, []string{"save"}) {
		t.Fatalf("unexpected failures %v", recorder.failures)
	}
}

func TestStorageAndSinkAreOptional(t *testing.T) {
	editor, err := New(Config{})
	if err != nil {
		t.Fatalf("new editor: %v", err)
	}
	if _, err := editor.Save(context.Background()); !errors.Is(err, ErrNoStorage) {
		t.Fatalf("expected no storage, got %v", err)
	}
	editor.Toggle()
	if _, err := editor.AddCard(context.Background(), content.CardKindLogo, pngFile("x.png"), cards.Metadata{}); !errors.Is(err, ErrNoImageSink) {
		t.Fatalf("expected no image sink, got %v", err)
	}
}
