package calendar

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/hm-eit/eitbot/discord"
)

// fetchConcurrency caps the number of calendars listed at the same time.
const fetchConcurrency = 4

// Option defines a function signature for Calendar's functional options.
type Option func(*Calendar)

// WithChannels sets the group name to channel ID mapping and the channel used for unmapped groups.
func WithChannels(channels map[string]string, fallbackChannelID string) Option {
	return func(c *Calendar) {
		c.channels = make(map[string]string, len(channels))
		for group, channelID := range channels {
			c.channels[group] = channelID
		}
		c.fallbackChannelID = fallbackChannelID
	}
}

// WithStore persists the posted messages so that a restarted bot can clean them up.
func WithStore(store Store) Option {
	return func(c *Calendar) {
		c.store = store
	}
}

// WithMetrics records reminder activity.
func WithMetrics(metrics *Metrics) Option {
	return func(c *Calendar) {
		c.metrics = metrics
	}
}

// WithThumbnails sets how embed thumbnails are derived from event summaries.
func WithThumbnails(thumbnails *Thumbnails) Option {
	return func(c *Calendar) {
		c.thumbnails = thumbnails
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) {
		c.now = now
	}
}

// ActiveReminder is a posted reminder message together with the entry it announces.
type ActiveReminder struct {
	Message MessageRef
	Entry   *Entry
}

// Calendar owns all Reminders of one guild and keeps them in sync with the remote calendars.
type Calendar struct {
	config            *Config
	location          *time.Location
	source            Source
	session           Session
	store             Store
	metrics           *Metrics
	thumbnails        *Thumbnails
	channels          map[string]string
	fallbackChannelID string
	now               func() time.Time

	// mu serializes the refresh and update callbacks, which cron runs on separate goroutines.
	mu        sync.Mutex
	reminders []*Reminder
	persisted []MessageRef
	cron      *cron.Cron
	cancel    context.CancelFunc
	initial   sync.WaitGroup
}

// New creates a Calendar. Polling does not begin before Start.
func New(config *Config, source Source, session Session, options ...Option) (*Calendar, error) {
	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
	}

	c := &Calendar{
		config:     config,
		location:   location,
		source:     source,
		session:    session,
		thumbnails: NewThumbnails(config.Thumbnails, config.ThumbnailURL),
		channels:   map[string]string{},
		now:        time.Now,
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// Start removes messages left over by a previous run and starts the refresh and update timers.
// The first refresh runs immediately. Timers run until Stop is called or ctx is canceled.
func (c *Calendar) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cron != nil {
		return ErrAlreadyStarted
	}

	c.purgeLeftovers(ctx)

	ctx, cancel := context.WithCancel(ctx)
	scheduler := cron.New(cron.WithLogger(cronLogger{}), cron.WithChain(cron.Recover(cronLogger{})))

	if _, err := scheduler.AddFunc(every(c.config.RefreshInterval), func() { c.refreshJob(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	if _, err := scheduler.AddFunc(every(c.config.UpdateInterval), func() { c.UpdateReminders(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule reminder updates: %w", err)
	}

	c.cron = scheduler
	c.cancel = cancel
	scheduler.Start()

	c.initial.Add(1)
	go func() {
		defer c.initial.Done()
		c.refreshJob(ctx)
	}()

	logger.Infof("Calendar started: refresh every %s, update every %s", c.config.RefreshInterval, c.config.UpdateInterval)
	return nil
}

// Running reports whether the timers are running.
func (c *Calendar) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cron != nil
}

// Stop stops both timers, waits for running callbacks and deletes every posted reminder message.
func (c *Calendar) Stop(ctx context.Context) {
	c.mu.Lock()
	scheduler, cancel := c.cron, c.cancel
	c.cron, c.cancel = nil, nil
	c.mu.Unlock()

	if scheduler == nil {
		return
	}

	cancel()
	<-scheduler.Stop().Done()
	c.initial.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Messages that could not be deleted stay in the store; the next Start purges them.
	var leftovers []MessageRef
	for _, r := range c.reminders {
		if err := r.DeleteMessage(ctx); err != nil {
			logger.Errorf("Failed to clean up reminder %s: %+v", r.ID, err)
			if ref, ok := r.Message(); ok {
				leftovers = append(leftovers, ref)
			}
		}
	}
	c.reminders = nil
	c.metrics.setReminders(0)
	c.save(leftovers)

	logger.Infof("Calendar stopped")
}

// Refresh fetches near-term entries and reconciles them against the tracked reminders.
// When fetching fails, the reminders are left untouched and the error is returned.
func (c *Calendar) Refresh(ctx context.Context) (err error) {
	started := time.Now()
	defer func() { c.metrics.observeRefresh(started, err) }()

	now := c.now()
	raws, err := c.fetch(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to fetch calendar entries: %w", err)
	}

	entries := make([]*Entry, 0, len(raws))
	for _, raw := range raws {
		entry, err := NewEntry(raw, c.location, c.thumbnails)
		if err != nil {
			logger.Warnf("Dropping calendar entry: %+v", err)
			c.metrics.dropEntry()
			continue
		}
		entries = append(entries, entry)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	c.reconcile(ctx, entries, now)
	return nil
}

// UpdateReminders lets every reminder send, edit or delete its message for the current time.
// Reminders whose event is over are dropped afterwards.
func (c *Calendar) UpdateReminders(ctx context.Context) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := make([]*Reminder, 0, len(c.reminders))
	for _, r := range c.reminders {
		if err := r.Update(ctx, now); err != nil {
			logger.Errorf("Failed to update reminder %s: %+v", r.ID, err)
		}

		if _, posted := r.Message(); !posted && (r.Withdrawn() || r.Entry().Ended(now)) {
			logger.Debugf("Reminder %s is over", r.ID)
			continue
		}
		kept = append(kept, r)
	}

	c.reminders = kept
	c.metrics.setReminders(len(kept))
	c.persist()
}

// Entries returns the entries of all tracked reminders in discovery order.
func (c *Calendar) Entries() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]*Entry, 0, len(c.reminders))
	for _, r := range c.reminders {
		if !r.Withdrawn() {
			entries = append(entries, r.Entry())
		}
	}
	return entries
}

// Active returns the posted reminder messages keyed by message ID.
func (c *Calendar) Active() map[string]ActiveReminder {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := make(map[string]ActiveReminder)
	for _, r := range c.reminders {
		if ref, ok := r.Message(); ok {
			active[ref.MessageID] = ActiveReminder{Message: ref, Entry: r.Entry()}
		}
	}
	return active
}

func (c *Calendar) refreshJob(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		logger.Errorf("Calendar refresh failed: %+v", err)
	}
}

func (c *Calendar) reconcile(ctx context.Context, entries []*Entry, now time.Time) {
	fetched := make(map[string]*Entry, len(entries))
	for _, entry := range entries {
		if _, dup := fetched[entry.ID]; !dup {
			fetched[entry.ID] = entry
		}
	}

	consumed := make(map[string]bool, len(entries))
	kept := make([]*Reminder, 0, len(c.reminders)+len(entries))

	for _, r := range c.reminders {
		entry, ok := fetched[r.ID]
		if !ok {
			// Cancelled, deleted or moved out of the horizon.
			if err := r.Withdraw(ctx); err != nil {
				logger.Errorf("Failed to remove vanished reminder %s, retrying on next update: %+v", r.ID, err)
				kept = append(kept, r)
				continue
			}
			logger.Infof("Removed reminder %s", r.ID)
			continue
		}

		consumed[r.ID] = true
		if r.Withdrawn() || !entry.Updated.Equal(r.Updated) {
			logger.Infof("Updating reminder %s", r.ID)
			if err := r.UpdateEntry(ctx, entry, now); err != nil {
				logger.Errorf("Failed to update reminder %s: %+v", r.ID, err)
			}
		}
		kept = append(kept, r)
	}

	for _, entry := range entries {
		if consumed[entry.ID] {
			continue
		}
		consumed[entry.ID] = true

		channelID, err := c.resolveChannel(entry)
		if errors.Is(err, ErrNoSeparator) {
			logger.Warnf("Skipping calendar entry %q: %+v", entry.Summary, err)
			c.metrics.dropEntry()
			continue
		}
		if err != nil {
			logger.Errorf("Could not find an appropriate channel for calendar entry %q, postponing new entries: %+v", entry.Summary, err)
			c.metrics.dropEntry()
			break
		}

		logger.Infof("New reminder %s for %q in %s", entry.ID, entry.Summary, channelID)
		kept = append(kept, NewReminder(entry, channelID, c.session, c.metrics))
	}

	c.reminders = kept
	c.metrics.setReminders(len(kept))
}

func (c *Calendar) resolveChannel(entry *Entry) (string, error) {
	group, _, err := entry.Route(c.config.Separator)
	if err != nil {
		return "", err
	}

	if channelID, ok := c.channels[group]; ok {
		return channelID, nil
	}

	if c.fallbackChannelID != "" {
		return c.fallbackChannelID, nil
	}

	return "", fmt.Errorf("%w: group %q", ErrNoChannel, group)
}

// fetch lists the events of all calendars concurrently and keeps those due for a reminder within the horizon.
func (c *Calendar) fetch(ctx context.Context, now time.Time) ([]RawEntry, error) {
	calendars, err := c.source.CalendarList(ctx)
	if err != nil {
		return nil, err
	}

	results := make([][]RawEntry, len(calendars))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for i, info := range calendars {
		g.Go(func() error {
			events, err := c.source.Events(gctx, info.Id, now, c.config.Limit)
			if err != nil {
				return err
			}

			for _, ev := range events {
				if !c.withinHorizon(ev, now) {
					continue
				}
				results[i] = append(results[i], RawEntry{
					Event:        ev,
					CalendarName: calendarName(info),
					Color:        info.BackgroundColor,
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return slices.Concat(results...), nil
}

// withinHorizon keeps events whose reminder fires within the horizon.
// Events with an unusable start are kept so that decoding reports them.
func (c *Calendar) withinHorizon(ev *gcal.Event, now time.Time) bool {
	start, _, err := ParseEventTime(ev.Start, c.location)
	if err != nil {
		return true
	}
	return start.Add(-LeadTime(ev)).Sub(now) <= c.config.Horizon
}

// purgeLeftovers deletes messages a previous run left behind and empties the store.
// Read failures are logged and treated as an empty store.
func (c *Calendar) purgeLeftovers(ctx context.Context) {
	if c.store == nil {
		return
	}

	refs, err := c.store.Load()
	if err != nil {
		logger.Warnf("Starting without stored reminders: %+v", err)
	}

	for _, ref := range refs {
		err := c.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
		if err != nil && !discord.IsNotFound(err) {
			logger.Errorf("Failed to delete leftover reminder message %s: %+v", ref.MessageID, err)
		}
	}

	if err := c.store.Save(nil); err != nil {
		logger.Errorf("Failed to reset reminder store: %+v", err)
	}
	c.persisted = nil
}

// persist writes the posted messages to the store when they changed since the last write.
func (c *Calendar) persist() {
	refs := make([]MessageRef, 0, len(c.reminders))
	for _, r := range c.reminders {
		if ref, ok := r.Message(); ok {
			refs = append(refs, ref)
		}
	}
	c.save(refs)
}

func (c *Calendar) save(refs []MessageRef) {
	if c.store == nil {
		return
	}

	if slices.Equal(refs, c.persisted) {
		return
	}

	if err := c.store.Save(refs); err != nil {
		logger.Warnf("Failed to persist reminders: %+v", err)
		return
	}
	c.persisted = refs
}

func calendarName(info *gcal.CalendarListEntry) string {
	if info.SummaryOverride != "" {
		return info.SummaryOverride
	}
	return info.Summary
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// cronLogger forwards cron's logging to the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debugf("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Errorf("cron: %s %v: %+v", msg, keysAndValues, err)
}
