// Package editor is the single controller behind the admin mode: it gates
// mutations on edit mode, owns the card collections and carousels, and
// snapshots or restores the site document through a storage adapter.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MarcoPoloResearchLab/folio/internal/appstate"
	"github.com/MarcoPoloResearchLab/folio/internal/cards"
	"github.com/MarcoPoloResearchLab/folio/internal/carousel"
	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/imaging"
	"github.com/MarcoPoloResearchLab/folio/internal/page"
	"github.com/MarcoPoloResearchLab/folio/internal/storage"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

var (
	// ErrRegionNotEditable indicates a locator that does not name an editable region.
	ErrRegionNotEditable = errors.New("editor: region is not editable")
	// ErrNoStorage indicates the editor was built without a storage adapter.
	ErrNoStorage = errors.New("editor: storage adapter is not configured")
	// ErrNoImageSink indicates the editor was built without an image sink.
	ErrNoImageSink = errors.New("editor: image sink is not configured")
)

// ImageSink turns a user-selected file into an image reference.
type ImageSink interface {
	Ingest(ctx context.Context, file imaging.File) (content.ImageRef, error)
}

// Recorder observes editor activity.
type Recorder interface {
	ObserveOperation(operation string, err error)
	SetBusy(busy bool)
}

// DefaultGeometry is the layout assumed before the first viewport report.
var DefaultGeometry = map[content.CardKind]carousel.Geometry{
	content.CardKindBusiness: {CardWidth: 300, ViewportWidth: 1200, WindowWidth: 1280},
	content.CardKindWork:     {CardWidth: 360, ViewportWidth: 1200, WindowWidth: 1280},
	content.CardKindLogo:     {CardWidth: 200, ViewportWidth: 1200, WindowWidth: 1280},
}

// Config wires an Editor.
type Config struct {
	Skeleton *page.Skeleton
	Storage  storage.Adapter
	Images   ImageSink
	Policy   *bluemonday.Policy
	Recorder Recorder
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Editor owns the application state and everything derived from it.
type Editor struct {
	storage  storage.Adapter
	images   ImageSink
	policy   *bluemonday.Policy
	recorder Recorder
	clock    func() time.Time
	logger   *zap.Logger

	busy atomic.Int32

	mu          sync.Mutex
	state       *appstate.State
	document    *page.Document
	collections map[content.CardKind]*cards.Collection
	carousels   map[content.CardKind]*carousel.Controller
	windowWidth int
}

// NewRichTextPolicy returns the sanitizer applied to editable region content.
func NewRichTextPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("p", "span", "em", "strong", "br")
	policy.RequireNoFollowOnLinks(false)
	return policy
}

// New builds an editor from the skeleton. Cards authored in the skeleton
// seed the collections and the id counters continue after them.
func New(cfg Config) (*Editor, error) {
	skeleton := cfg.Skeleton
	if skeleton == nil {
		skeleton = page.DefaultSkeleton()
	}
	document, err := skeleton.NewDocument()
	if err != nil {
		return nil, err
	}
	seeds := document.ExtractSeedCards()

	counters := make(map[content.CardKind]int, len(content.CardKinds))
	for _, kind := range content.CardKinds {
		counters[kind] = len(seeds[kind]) + 1
	}

	policy := cfg.Policy
	if policy == nil {
		policy = NewRichTextPolicy()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	editor := &Editor{
		storage:     cfg.Storage,
		images:      cfg.Images,
		policy:      policy,
		recorder:    cfg.Recorder,
		clock:       clock,
		logger:      logger,
		state:       appstate.New(counters),
		document:    document,
		collections: make(map[content.CardKind]*cards.Collection, len(content.CardKinds)),
		carousels:   make(map[content.CardKind]*carousel.Controller, len(content.CardKinds)),
		windowWidth: DefaultGeometry[content.CardKindBusiness].WindowWidth,
	}
	for _, kind := range content.CardKinds {
		collection := cards.NewCollection(kind, editor.state)
		collection.Rebuild(seeds[kind])
		editor.collections[kind] = collection
		editor.carousels[kind] = carousel.New(collection, trackPresenter{kind: kind, logger: logger}, DefaultGeometry[kind])
	}
	return editor, nil
}

type trackPresenter struct {
	kind   content.CardKind
	logger *zap.Logger
}

func (p trackPresenter) Translate(offset int) {
	p.logger.Debug("carousel positioned", zap.String("kind", p.kind.String()), zap.Int("offset", offset))
}

// EditMode reports whether mutations are currently allowed.
func (e *Editor) EditMode() bool {
	return e.state.EditMode()
}

// Toggle flips edit mode and returns the new value. Nothing is persisted.
func (e *Editor) Toggle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	enabled := e.state.ToggleEditMode()
	e.logger.Info("edit mode toggled", zap.Bool("edit_mode", enabled))
	e.observe("toggle", nil)
	return enabled
}

// Busy reports whether a save, load or ingestion is in flight.
func (e *Editor) Busy() bool {
	return e.busy.Load() > 0
}

// beginBusy raises the busy indicator; the returned func lowers it and must
// run on every path.
func (e *Editor) beginBusy() func() {
	if e.busy.Add(1) == 1 && e.recorder != nil {
		e.recorder.SetBusy(true)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			if e.busy.Add(-1) == 0 && e.recorder != nil {
				e.recorder.SetBusy(false)
			}
		})
	}
}

// AddCard ingests the file and appends a card to the collection.
func (e *Editor) AddCard(ctx context.Context, kind content.CardKind, file imaging.File, metadata cards.Metadata) (appstate.Handle, error) {
	collection, err := e.collection(kind)
	if err != nil {
		return 0, err
	}
	if !e.state.EditMode() {
		return 0, e.record("add_card", cards.ErrEditModeDisabled)
	}
	ref, err := e.ingest(ctx, file)
	if err != nil {
		return 0, e.record("add_card", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.EditMode() {
		return 0, e.record("add_card", cards.ErrEditModeDisabled)
	}
	handle := collection.Append(ref, metadata)
	e.carousels[kind].Refresh()
	e.logger.Info("card added", zap.String("kind", kind.String()), zap.Int64("handle", int64(handle)))
	e.observe("add_card", nil)
	return handle, nil
}

// ReplaceImage ingests the file outside the model lock and commits it to the
// card by handle, so overlapping replacements never touch other cards.
func (e *Editor) ReplaceImage(ctx context.Context, kind content.CardKind, handle appstate.Handle, file imaging.File) (content.ImageRef, error) {
	collection, err := e.collection(kind)
	if err != nil {
		return "", err
	}
	if !e.state.EditMode() {
		return "", e.record("replace_image", cards.ErrEditModeDisabled)
	}
	if _, found := collection.Find(handle); !found {
		return "", e.record("replace_image", fmt.Errorf("%w: %d", cards.ErrCardNotFound, handle))
	}
	ref, err := e.ingest(ctx, file)
	if err != nil {
		return "", e.record("replace_image", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := collection.ReplaceImage(handle, ref); err != nil {
		return "", e.record("replace_image", err)
	}
	e.observe("replace_image", nil)
	return ref, nil
}

// ReplaceAboutPhoto ingests the file and swaps the about section image.
func (e *Editor) ReplaceAboutPhoto(ctx context.Context, file imaging.File) (content.ImageRef, error) {
	if !e.state.EditMode() {
		return "", e.record("replace_about_photo", cards.ErrEditModeDisabled)
	}
	ref, err := e.ingest(ctx, file)
	if err != nil {
		return "", e.record("replace_about_photo", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.EditMode() {
		return "", e.record("replace_about_photo", cards.ErrEditModeDisabled)
	}
	e.document.SetAboutPhoto(ref)
	e.observe("replace_about_photo", nil)
	return ref, nil
}

// EditText sets a text field of a card.
func (e *Editor) EditText(kind content.CardKind, handle appstate.Handle, field cards.Field, value string) error {
	collection, err := e.collection(kind)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record("edit_text", collection.EditText(handle, field, value))
}

// EditLink validates and sets a work card link.
func (e *Editor) EditLink(kind content.CardKind, handle appstate.Handle, rawLink string) error {
	collection, err := e.collection(kind)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record("edit_link", collection.EditLink(handle, rawLink))
}

// RemoveCard deletes a card and re-clamps its carousel.
func (e *Editor) RemoveCard(kind content.CardKind, handle appstate.Handle) error {
	collection, err := e.collection(kind)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := collection.Remove(handle); err != nil {
		return e.record("remove_card", err)
	}
	e.carousels[kind].Refresh()
	e.observe("remove_card", nil)
	return nil
}

// MoveCard reorders a card within its collection.
func (e *Editor) MoveCard(kind content.CardKind, handle appstate.Handle, target int) error {
	collection, err := e.collection(kind)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record("move_card", collection.Move(handle, target))
}

// EditRegion replaces the sanitized content of an editable region.
func (e *Editor) EditRegion(locator, richContent string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.EditMode() {
		return e.record("edit_region", cards.ErrEditModeDisabled)
	}
	if !e.document.HasRegion(locator) {
		return e.record("edit_region", fmt.Errorf("%w: %q", ErrRegionNotEditable, locator))
	}
	return e.record("edit_region", e.document.SetRegion(locator, e.policy.Sanitize(richContent)))
}

// Advance moves a carousel one step.
func (e *Editor) Advance(kind content.CardKind, step int) (int, error) {
	controller, err := e.carousel(kind)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	controller.Advance(step)
	return controller.Index(), nil
}

// Viewport carries measured layout for one or more carousels.
type Viewport struct {
	WindowWidth int
	Geometries  map[content.CardKind]carousel.Geometry
}

// ResizeViewport records new measurements and re-clamps every affected carousel.
func (e *Editor) ResizeViewport(viewport Viewport) error {
	for kind := range viewport.Geometries {
		if _, err := e.carousel(kind); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if viewport.WindowWidth > 0 {
		e.windowWidth = viewport.WindowWidth
	}
	for _, kind := range content.CardKinds {
		controller := e.carousels[kind]
		geometry, ok := viewport.Geometries[kind]
		if !ok {
			geometry = controller.Geometry()
		}
		if viewport.WindowWidth > 0 {
			geometry.WindowWidth = viewport.WindowWidth
		}
		if geometry.WindowWidth == 0 {
			geometry.WindowWidth = e.windowWidth
		}
		controller.OnViewportChange(geometry)
	}
	return nil
}

// Save snapshots the page and persists it.
func (e *Editor) Save(ctx context.Context) (content.SaveReceipt, error) {
	if e.storage == nil {
		return content.SaveReceipt{}, ErrNoStorage
	}
	release := e.beginBusy()
	defer release()

	doc, err := e.Snapshot()
	if err != nil {
		return content.SaveReceipt{}, e.record("save", err)
	}
	receipt, err := e.storage.Save(ctx, doc)
	if err != nil {
		e.logger.Error("save failed", zap.String("kind", string(storage.KindOf(err))), zap.Error(err))
		return content.SaveReceipt{}, e.record("save", err)
	}
	e.logger.Info("content saved", zap.Time("timestamp", receipt.Timestamp))
	e.observe("save", nil)
	return receipt, nil
}

// Load fetches the stored document and restores it. found is false when
// nothing has been stored yet.
func (e *Editor) Load(ctx context.Context) (RestoreReport, bool, error) {
	if e.storage == nil {
		return RestoreReport{}, false, ErrNoStorage
	}
	release := e.beginBusy()
	defer release()

	doc, err := e.storage.Load(ctx)
	if err != nil {
		return RestoreReport{}, false, e.record("load", err)
	}
	if doc == nil {
		e.observe("load", nil)
		return RestoreReport{}, false, nil
	}
	report := e.Restore(*doc)
	e.observe("load", nil)
	return report, true, nil
}

func (e *Editor) ingest(ctx context.Context, file imaging.File) (content.ImageRef, error) {
	if e.images == nil {
		return "", ErrNoImageSink
	}
	release := e.beginBusy()
	defer release()
	return e.images.Ingest(ctx, file)
}

func (e *Editor) collection(kind content.CardKind) (*cards.Collection, error) {
	collection, ok := e.collections[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", content.ErrInvalidCardKind, kind)
	}
	return collection, nil
}

func (e *Editor) carousel(kind content.CardKind) (*carousel.Controller, error) {
	controller, ok := e.carousels[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", content.ErrInvalidCardKind, kind)
	}
	return controller, nil
}

func (e *Editor) observe(operation string, err error) {
	if e.recorder != nil {
		e.recorder.ObserveOperation(operation, err)
	}
}

// record records the outcome of an operation and returns err unchanged.
func (e *Editor) record(operation string, err error) error {
	e.observe(operation, err)
	if err != nil {
		e.logger.Debug("editor operation rejected", zap.String("operation", operation), zap.Error(err))
	}
	return err
}
