package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"marinehub/internal/util"
	"marinehub/pkg/domain"
	"marinehub/pkg/payment"
	"marinehub/pkg/scheduling"
	"marinehub/pkg/upload"
	"marinehub/pkg/wizard"
	"marinehub/services/wizard/internal/store"
)

// RepairAPI is the subset of the repair client the wizard needs.
type RepairAPI interface {
	wizard.Submitter
	Get(ctx context.Context, token, id string) (domain.RepairRequest, error)
	DeleteGuarded(ctx context.Context, token string, req domain.RepairRequest, now time.Time) error
}

// Config wires the dependencies of App.
type Config struct {
	Store        store.SessionStore
	Repairs      RepairAPI
	Uploader     *upload.Uploader
	Signer       upload.Signer
	Events       scheduling.EventSource
	Bus          *scheduling.Bus
	Payments     *payment.Delegate
	WidgetURL    string
	UploadFolder string
	UploadTags   []string
	Now          func() time.Time
}

// App runs wizard sessions. Scheduling listeners and in-flight uploads are
// held in process, so one session must be served by one instance.
type App struct {
	store        store.SessionStore
	repairs      RepairAPI
	uploader     *upload.Uploader
	signer       upload.Signer
	events       scheduling.EventSource
	bus          *scheduling.Bus
	payments     *payment.Delegate
	widgetURL    string
	uploadFolder string
	uploadTags   []string
	now          func() time.Time

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	bridges  map[string]*scheduling.Bridge
	uploads  map[string]context.CancelFunc
	progress map[string]float64
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Repairs == nil {
		return nil, errors.New("repair api client is required")
	}
	bus := cfg.Bus
	if bus == nil {
		bus = scheduling.NewBus()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	folder := strings.TrimSpace(cfg.UploadFolder)
	if folder == "" {
		folder = "boat-repairs"
	}
	return &App{
		store:        cfg.Store,
		repairs:      cfg.Repairs,
		uploader:     cfg.Uploader,
		signer:       cfg.Signer,
		events:       cfg.Events,
		bus:          bus,
		payments:     cfg.Payments,
		widgetURL:    cfg.WidgetURL,
		uploadFolder: folder,
		uploadTags:   cfg.UploadTags,
		now:          now,
		locks:        make(map[string]*sync.Mutex),
		bridges:      make(map[string]*scheduling.Bridge),
		uploads:      make(map[string]context.CancelFunc),
		progress:     make(map[string]float64),
	}, nil
}

// lock serializes mutations of one session.
func (a *App) lock(id string) func() {
	a.mu.Lock()
	l, ok := a.locks[id]
	if !ok {
		l = &sync.Mutex{}
		a.locks[id] = l
	}
	a.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (a *App) controller(sess *store.Session) *wizard.Controller {
	return wizard.NewController(sess.State).WithClock(a.now)
}

// mutate loads a session, applies fn under the session lock and saves the
// result even when fn fails, so recorded field errors survive.
func (a *App) mutate(ctx context.Context, id string, fn func(*store.Session, *wizard.Controller) error) (*store.Session, error) {
	unlock := a.lock(id)
	defer unlock()
	sess, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.clearStaleUpload(sess) {
		util.LoggerFromContext(ctx).Warn("cleared stale upload flag", "session_id", id)
	}
	fnErr := fn(sess, a.controller(sess))
	if err := a.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, fnErr
}

// CreateSession starts a wizard. Edit mode loads repairID with token.
func (a *App) CreateSession(ctx context.Context, token string, mode wizard.Mode, repairID string) (*store.Session, error) {
	var state *wizard.FormState
	switch mode {
	case wizard.ModeNew, "":
		state = wizard.NewState()
	case wizard.ModeEdit:
		if strings.TrimSpace(repairID) == "" {
			return nil, fmt.Errorf("%w: edit mode requires repairId", ErrInvalidMode)
		}
		req, err := a.repairs.Get(ctx, token, repairID)
		if err != nil {
			return nil, err
		}
		state = wizard.NewEdit(req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	state.UpdatedAt = a.now().UTC()
	sess := &store.Session{State: state}
	if err := a.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	util.LoggerFromContext(ctx).Info("wizard session created", "session_id", sess.ID, "mode", state.Mode)
	return sess, nil
}

// GetSession returns the session with live upload progress applied.
func (a *App) GetSession(ctx context.Context, id string) (*store.Session, error) {
	sess, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	a.clearStaleUpload(sess)
	a.mu.Lock()
	if p, ok := a.progress[id]; ok && sess.State.Uploading {
		sess.State.UploadProgress = p
	}
	a.mu.Unlock()
	return sess, nil
}

// clearStaleUpload resets an uploading flag that no batch in this process
// owns, as left behind by a restart mid-batch.
func (a *App) clearStaleUpload(sess *store.Session) bool {
	if !sess.State.Uploading {
		return false
	}
	a.mu.Lock()
	_, running := a.uploads[sess.ID]
	a.mu.Unlock()
	if running {
		return false
	}
	a.controller(sess).CancelUpload()
	return true
}

// DiscardSession cancels any upload, releases the listener and deletes the
// session.
func (a *App) DiscardSession(ctx context.Context, id string) error {
	a.CancelUpload(id)
	a.releaseBridge(id)
	if err := a.store.Delete(ctx, id); err != nil {
		return err
	}
	a.forget(id)
	return nil
}

func (a *App) UpdateFields(ctx context.Context, id string, patch wizard.FieldPatch) (*store.Session, error) {
	return a.mutate(ctx, id, func(_ *store.Session, c *wizard.Controller) error {
		c.Update(patch)
		return nil
	})
}

// Next advances the session and acquires or releases the scheduling
// listener to match the new step.
func (a *App) Next(ctx context.Context, id string) (*store.Session, error) {
	sess, err := a.mutate(ctx, id, func(_ *store.Session, c *wizard.Controller) error {
		return c.Next()
	})
	if sess != nil {
		a.syncBridge(id, sess.State)
	}
	return sess, err
}

func (a *App) Previous(ctx context.Context, id string) (*store.Session, error) {
	sess, err := a.mutate(ctx, id, func(_ *store.Session, c *wizard.Controller) error {
		return c.Previous()
	})
	if sess != nil {
		a.syncBridge(id, sess.State)
	}
	return sess, err
}

// Upload sends a batch to storage. The session is marked uploading for the
// duration so the upload step cannot be left early.
func (a *App) Upload(ctx context.Context, id string, files []upload.File) (*store.Session, error) {
	if a.uploader == nil {
		return nil, errors.New("uploads are not configured")
	}
	if _, err := upload.PrepareBatch(files); err != nil {
		return nil, err
	}
	a.mu.Lock()
	if _, busy := a.uploads[id]; busy {
		a.mu.Unlock()
		return nil, ErrUploadInFlight
	}
	uploadCtx, cancel := context.WithCancel(ctx)
	a.uploads[id] = cancel
	a.progress[id] = 0
	a.mu.Unlock()
	defer func() {
		cancel()
		a.mu.Lock()
		delete(a.uploads, id)
		delete(a.progress, id)
		a.mu.Unlock()
	}()

	if _, err := a.mutate(ctx, id, func(_ *store.Session, c *wizard.Controller) error {
		c.BeginUpload()
		return nil
	}); err != nil {
		return nil, err
	}

	logger := util.LoggerFromContext(ctx)
	results, uploadErr := a.uploader.UploadBatch(uploadCtx, files, upload.Options{
		Folder: a.uploadFolder,
		Tags:   a.uploadTags,
		OnProgress: func(p float64) {
			a.mu.Lock()
			a.progress[id] = p
			a.mu.Unlock()
		},
	})

	// The request context may be gone once the batch is cancelled.
	saveCtx := context.WithoutCancel(ctx)
	return a.mutate(saveCtx, id, func(_ *store.Session, c *wizard.Controller) error {
		switch {
		case uploadErr == nil:
			c.FinishUpload(results, "")
			logger.Info("upload batch stored", "session_id", id, "files", len(results))
			return nil
		case errors.Is(uploadErr, upload.ErrCancelled):
			c.CancelUpload()
			logger.Info("upload batch cancelled", "session_id", id)
		default:
			c.FinishUpload(nil, uploadErr.Error())
			logger.Warn("upload batch failed", "session_id", id, "err", uploadErr)
		}
		return uploadErr
	})
}

// CancelUpload aborts the session's in-flight batch. It reports whether a
// batch was running.
func (a *App) CancelUpload(id string) bool {
	a.mu.Lock()
	cancel, ok := a.uploads[id]
	a.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// RemoveUpload drops the file at index from the session and deletes it from
// storage when the backend supports removal.
func (a *App) RemoveUpload(ctx context.Context, id string, index int) (*store.Session, error) {
	var removed domain.UploadedFile
	sess, err := a.mutate(ctx, id, func(_ *store.Session, c *wizard.Controller) error {
		c.Release = func(att wizard.Attachment) {
			util.LoggerFromContext(ctx).Debug("preview released", "session_id", id, "name", att.Name)
		}
		var err error
		removed, err = c.RemoveUpload(index)
		return err
	})
	if err != nil {
		return sess, err
	}
	if a.uploader != nil {
		if err := a.uploader.Remove(ctx, removed); err != nil && !errors.Is(err, upload.ErrNoBackendRemove) {
			util.LoggerFromContext(ctx).Warn("remove stored upload failed", "session_id", id, "storage_id", removed.StorageID, "err", err)
		}
	}
	return sess, nil
}

// Sign issues an upload signature with the server-held secret.
func (a *App) Sign(ctx context.Context, params map[string]string) (upload.Signature, error) {
	if a.signer == nil {
		return upload.Signature{}, errors.New("upload signing is not configured")
	}
	return a.signer.Sign(ctx, params)
}

// Widget returns the session's widget HTML, injecting the iframe once.
func (a *App) Widget(ctx context.Context, id string) (string, error) {
	sess, err := a.mutate(ctx, id, func(sess *store.Session, _ *wizard.Controller) error {
		if sess.State.Mode != wizard.ModeNew {
			return ErrNewModeOnly
		}
		fragment := sess.State.WidgetHTML
		if fragment == "" {
			fragment = scheduling.WidgetFragment(a.widgetURL)
		}
		out, _, err := scheduling.EmbedInline(fragment, a.widgetURL)
		if err != nil {
			return err
		}
		sess.State.WidgetHTML = out
		return nil
	})
	if err != nil {
		return "", err
	}
	a.syncBridge(id, sess.State)
	return sess.State.WidgetHTML, nil
}

// RelayMessage hands a widget message to the session's listener.
func (a *App) RelayMessage(ctx context.Context, id string, msg scheduling.Message) error {
	if _, err := a.store.Get(ctx, id); err != nil {
		return err
	}
	n, err := a.bus.Publish(ctx, bridgeTopic(id), msg)
	if n == 0 {
		return ErrListenerInactive
	}
	return err
}

func (a *App) confirm(id string) scheduling.ConfirmFunc {
	return func(ctx context.Context, c scheduling.Confirmation) error {
		start := c.StartTime
		_, err := a.mutate(ctx, id, func(_ *store.Session, ctrl *wizard.Controller) error {
			return ctrl.ConfirmSchedule(domain.Scheduling{
				ScheduledDateTime: &start,
				EventURI:          c.EventURI,
				InviteeURI:        c.InviteeURI,
			})
		})
		if err == nil {
			util.LoggerFromContext(ctx).Info("appointment confirmed", "session_id", id, "start", start)
		}
		return err
	}
}

func bridgeTopic(id string) string {
	return "wizard:" + id + ":scheduling"
}

// syncBridge holds a listener exactly while a new-mode session sits on the
// scheduling step.
func (a *App) syncBridge(id string, state *wizard.FormState) {
	if state.Mode == wizard.ModeNew && state.Current() == wizard.StepSchedule {
		a.mu.Lock()
		b, ok := a.bridges[id]
		if !ok {
			b = scheduling.NewBridge(a.bus, bridgeTopic(id), a.events, a.confirm(id))
			a.bridges[id] = b
		}
		a.mu.Unlock()
		b.Enter()
		return
	}
	a.releaseBridge(id)
}

func (a *App) releaseBridge(id string) {
	a.mu.Lock()
	b, ok := a.bridges[id]
	delete(a.bridges, id)
	a.mu.Unlock()
	if ok {
		b.Exit()
	}
}

// ListenerActive reports whether the session holds a scheduling listener.
func (a *App) ListenerActive(id string) bool {
	return a.bus.Subscribers(bridgeTopic(id)) > 0
}

// PaymentIntent opens a checkout for the session's service type.
func (a *App) PaymentIntent(ctx context.Context, id string) (payment.Intent, error) {
	sess, err := a.store.Get(ctx, id)
	if err != nil {
		return payment.Intent{}, err
	}
	if sess.State.Mode != wizard.ModeNew {
		return payment.Intent{}, ErrNewModeOnly
	}
	if a.payments == nil {
		return payment.Intent{}, errors.New("payments are not configured")
	}
	return a.payments.Begin(ctx, sess.State.Draft.ServiceType, id)
}

// CompletePayment applies the payment component's success callback.
func (a *App) CompletePayment(ctx context.Context, id string, result payment.Result) (*store.Session, error) {
	delegate := a.payments
	if delegate == nil {
		delegate = payment.NewDelegate(nil)
	}
	return a.mutate(ctx, id, func(sess *store.Session, c *wizard.Controller) error {
		p, err := delegate.Complete(sess.State.Draft.ServiceType, result)
		if err != nil {
			return err
		}
		return c.CompletePayment(p)
	})
}

// Submit sends the request. A successful submission ends the session.
func (a *App) Submit(ctx context.Context, id, token string) (domain.RepairRequest, error) {
	var saved domain.RepairRequest
	_, err := a.mutate(ctx, id, func(_ *store.Session, c *wizard.Controller) error {
		var err error
		saved, err = c.Submit(ctx, a.repairs, token)
		return err
	})
	if err != nil {
		return domain.RepairRequest{}, err
	}
	util.LoggerFromContext(ctx).Info("repair request submitted", "session_id", id, "repair_id", saved.ID, "booking_id", saved.BookingID)
	if err := a.DiscardSession(ctx, id); err != nil {
		util.LoggerFromContext(ctx).Warn("discard submitted session failed", "session_id", id, "err", err)
	}
	return saved, nil
}

// DeleteRepair deletes a request unless its appointment is too close.
func (a *App) DeleteRepair(ctx context.Context, token, repairID string) error {
	req, err := a.repairs.Get(ctx, token, repairID)
	if err != nil {
		return err
	}
	return a.repairs.DeleteGuarded(ctx, token, req, a.now())
}

func (a *App) forget(id string) {
	a.mu.Lock()
	delete(a.locks, id)
	a.mu.Unlock()
}
