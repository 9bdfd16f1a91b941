package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/proxtrack/pt/internal/beacon"
	"github.com/proxtrack/pt/internal/diagstore"
	"github.com/proxtrack/pt/internal/fsutil"
	"github.com/proxtrack/pt/internal/monitoring"
	"github.com/proxtrack/pt/internal/timeutil"
	"github.com/proxtrack/pt/internal/watchlist"
)

// EventRecorder is the narrow interface DeviceTracker needs to log
// segmentation transitions and watchlist load/save outcomes; *diagstore.Store
// satisfies it without any adapter. Kept as an interface (rather than a
// direct *diagstore.Store field) so DeviceTracker never requires an open
// database to run — tests and embedded callers that pass no EventRecorder
// simply get no diagnostics logging, and tests can substitute a fake one.
type EventRecorder interface {
	InsertEvent(tsUnix int64, kind, detail string) error
}

// Config configures a DeviceTracker. Only operational settings live here;
// the scoring/windowing constants are fixed in constants.go per spec.md §6.
type Config struct {
	QueueCapacity int
	WatchlistDir  string
	WatchlistPath string
	KMLPath       string

	Clock timeutil.Clock
	FS    fsutil.FileSystem

	// Events, when set, receives segment-advance and watchlist load/save
	// diagnostics events (spec.md's "operator diagnostics" counters,
	// SPEC_FULL.md §5). Optional: a nil Events means no logging.
	Events EventRecorder
}

// DeviceTracker is the public facade: the single owned object holding the
// observation queue, entity tables, segmentation state and GNSS snapshot,
// all guarded by one non-reentrant mutex (spec.md §9, "no global mutable
// state").
type DeviceTracker struct {
	mu     sync.Mutex
	tables *Tables
	seg    *Segmentation

	gnssValid bool
	gnssLat   float64
	gnssLon   float64

	crowdWindow     int64
	crowdWindowHits uint32

	queue    *ObservationQueue
	counters Counters

	clock timeutil.Clock
	fs    fsutil.FileSystem

	watchlistDir  string
	watchlistPath string
	kmlPath       string

	events EventRecorder

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a DeviceTracker. Begin must be called before observations
// are processed.
func New(cfg Config) *DeviceTracker {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	fs := cfg.FS
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &DeviceTracker{
		tables:        NewTables(),
		seg:           NewSegmentation(),
		clock:         clock,
		fs:            fs,
		watchlistDir:  cfg.WatchlistDir,
		watchlistPath: cfg.WatchlistPath,
		kmlPath:       cfg.KMLPath,
		events:        cfg.Events,
	}
}

// recordEvent logs a diagnostics event through Events, if configured.
// Failures are logged and otherwise ignored — diagnostics logging must
// never be a correctness boundary for the tracker core.
func (dt *DeviceTracker) recordEvent(tsUnix int64, kind, detail string) {
	if dt.events == nil {
		return
	}
	if err := dt.events.InsertEvent(tsUnix, kind, detail); err != nil {
		monitoring.Logf("diagstore: record %s event failed: %v", kind, err)
	}
}

// Begin creates the observation queue, loads the watchlist if one exists
// on disk, and starts the processing task. The only fatal condition is an
// invalid queue capacity.
func (dt *DeviceTracker) Begin(queueCapacity int) error {
	if queueCapacity < 0 {
		return fmt.Errorf("begin: invalid queue capacity %d", queueCapacity)
	}
	// The receive timeout runs on real time: segmentation and expiry read
	// dt.clock, and a mock clock's timers fire only when it is advanced.
	dt.queue = NewObservationQueue(queueCapacity, nil)
	dt.stopCh = make(chan struct{})
	dt.doneCh = make(chan struct{})

	if dt.watchlistPath != "" {
		if err := dt.ReadWatchlist(); err != nil {
			monitoring.Logf("watchlist load skipped: %v", err)
		}
	}

	go dt.run()
	return nil
}

// Enqueue offers obs to the observation queue without blocking. Producers
// (radio callbacks) use this; a full queue drops obs and bumps
// QueueFullDrops.
func (dt *DeviceTracker) Enqueue(obs Observation) bool {
	if dt.queue == nil {
		return false
	}
	if dt.queue.TryEnqueue(obs) {
		return true
	}
	dt.counters.QueueFullDrops.Add(1)
	return false
}

// run is the single consumer task: receive with a 250ms timeout, process
// if anything arrived, then unconditionally advance segmentation and
// expire idle slots off wall-clock time, not loop iterations.
func (dt *DeviceTracker) run() {
	defer close(dt.doneCh)
	for {
		select {
		case <-dt.stopCh:
			return
		default:
		}

		obs, ok := dt.queue.Dequeue(ReceiveTimeoutMS * time.Millisecond)
		if ok {
			dt.processObservation(obs)
		}

		nowS := dt.clock.Now().Unix()
		dt.mu.Lock()
		gnssValid, lat, lon := dt.gnssValid, dt.gnssLat, dt.gnssLon
		segmentBefore := dt.seg.SegmentID
		dt.seg.Advance(nowS, gnssValid, lat, lon, dt.tables)
		segmentAfter := dt.seg.SegmentID
		dt.tables.ExpireTables(nowS)
		dt.mu.Unlock()

		if segmentAfter != segmentBefore {
			dt.recordEvent(nowS, diagstore.KindSegmentAdvance, fmt.Sprintf("segment_id=%d", segmentAfter))
		}
	}
}

// Stop halts the processing task and waits for it to exit. Not part of
// spec.md's public surface (the target device reboots instead), but
// needed so tests and cmd/pt-tracker can shut down cleanly.
func (dt *DeviceTracker) Stop() {
	if dt.stopCh == nil {
		return
	}
	close(dt.stopCh)
	<-dt.doneCh
}

// SetGPSFix updates the current GNSS snapshot under the lock. An invalid
// fix clears the GNSS-mode segmentation anchor so the next valid fix is
// treated as a fresh reference point.
func (dt *DeviceTracker) SetGPSFix(valid bool, lat, lon float64) {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	dt.gnssValid = valid
	dt.gnssLat = lat
	dt.gnssLon = lon
	if !valid {
		dt.seg.clearGNSSAnchor()
	}
}

// UpdateEntity toggles the Watching flag for the slot identified by
// (kind, index); all other fields of view are ignored, per spec.md §4.11.
func (dt *DeviceTracker) UpdateEntity(view EntityView) bool {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	switch view.Kind {
	case EntityWifiClient, EntityBleAdv:
		for i := range dt.tables.tracks {
			t := &dt.tables.tracks[i]
			if t.InUse && t.Index == view.Index {
				t.Flags |= FlagWatching
				if !view.Watching {
					t.Flags &^= FlagWatching
				}
				return true
			}
		}
	case EntityWifiAp:
		for i := range dt.tables.anchors {
			a := &dt.tables.anchors[i]
			if a.InUse && a.Index == view.Index {
				a.Flags |= FlagWatching
				if !view.Watching {
					a.Flags &^= FlagWatching
				}
				return true
			}
		}
	}
	return false
}

// Reset drains the queue, clears all non-watching slots, recomputes
// next_index, and resets segmentation/crowd/GNSS state. Watched entries
// survive.
func (dt *DeviceTracker) Reset() {
	if dt.queue != nil {
		dt.queue.drain()
	}

	dt.mu.Lock()
	defer dt.mu.Unlock()

	dt.tables.clearNonWatching()
	dt.seg = NewSegmentation()
	dt.gnssValid = false
	dt.gnssLat = 0
	dt.gnssLon = 0
	dt.crowdWindow = 0
	dt.crowdWindowHits = 0
}

// SegmentID returns the segmentation engine's current segment id.
func (dt *DeviceTracker) SegmentID() uint32 {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return dt.seg.SegmentID
}

// MoveSegments returns the running count of segment advances.
func (dt *DeviceTracker) MoveSegments() uint32 {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return dt.seg.MoveSegments
}

// LastEnvTickS returns the last fingerprint-mode evaluation timestamp.
func (dt *DeviceTracker) LastEnvTickS() int64 {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return dt.seg.LastEnvTickS
}

// Counters returns a point-in-time copy of the operator diagnostics
// counters.
func (dt *DeviceTracker) Counters() CounterSnapshot {
	return dt.counters.Snapshot()
}

// ReadWatchlist loads the watchlist document from disk and restores
// Watching entities into the tables, finding or allocating slots as
// needed. Malformed items and items with an unparsable MAC are skipped;
// the skip count from watchlist.Load is discarded.
func (dt *DeviceTracker) ReadWatchlist() error {
	nowS := dt.clock.Now().Unix()

	doc, _, err := watchlist.Load(dt.fs, dt.watchlistDir, dt.watchlistPath)
	if err != nil {
		dt.recordEvent(nowS, diagstore.KindWatchlistLoad, fmt.Sprintf("error=%v", err))
		return err
	}

	dt.mu.Lock()
	for _, item := range doc.Items {
		dt.restoreWatchlistItem(item, nowS)
	}
	dt.mu.Unlock()

	dt.recordEvent(nowS, diagstore.KindWatchlistLoad, fmt.Sprintf("items=%d", len(doc.Items)))
	return nil
}

func (dt *DeviceTracker) restoreWatchlistItem(item watchlist.Item, nowS int64) {
	addr, err := watchlist.ParseMac(item.Mac)
	if err != nil {
		return
	}

	switch item.Kind {
	case watchlist.KindWifiAp:
		a, ok := dt.tables.FindOrAllocAnchor(addr, nowS)
		if !ok {
			return
		}
		a.Flags |= FlagWatching
		if item.SSID != nil {
			n := copy(a.SSID[:], *item.SSID)
			a.SSIDLen = uint8(n)
		}
		if item.Lat != nil && item.Lon != nil {
			a.Flags |= FlagHasGeo
			a.BestLat, a.BestLon = float64(*item.Lat), float64(*item.Lon)
			a.LastLat, a.LastLon = float64(*item.Lat), float64(*item.Lon)
		}
	case watchlist.KindWifiClient, watchlist.KindBleAdv:
		kind := WifiClient
		if item.Kind == watchlist.KindBleAdv {
			kind = BleAdvertiser
		}
		t, ok := dt.tables.FindOrAllocTrack(kind, addr, nowS, dt.seg.SegmentID)
		if !ok {
			return
		}
		t.Flags |= FlagWatching
		if item.Lat != nil && item.Lon != nil {
			t.Flags |= FlagHasGeo
			t.LastLat, t.LastLon = float64(*item.Lat), float64(*item.Lon)
		}
		if item.TrackerType != nil {
			t.TrackerType = beacon.ParseTrackerType(*item.TrackerType)
		}
		if item.TrackerGoogleMfr != nil {
			t.TrackerGoogleMfr = beacon.ParseGoogleMfr(*item.TrackerGoogleMfr)
		}
		if item.TrackerSamsungSubtype != nil {
			t.TrackerSamsungSubtype = beacon.ParseSamsungSubtype(*item.TrackerSamsungSubtype)
		}
		if item.TrackerConfidence != nil {
			t.TrackerConfidence = *item.TrackerConfidence
		}
	}
}

// WriteWatchlist persists every Watching entity to disk.
func (dt *DeviceTracker) WriteWatchlist() error {
	dt.mu.Lock()
	items := dt.collectWatchlistItems()
	dt.mu.Unlock()

	nowS := dt.clock.Now().Unix()
	err := watchlist.Save(dt.fs, dt.watchlistDir, dt.watchlistPath, watchlist.NewDocument(items))
	if err != nil {
		dt.recordEvent(nowS, diagstore.KindWatchlistSave, fmt.Sprintf("error=%v", err))
		return err
	}
	dt.recordEvent(nowS, diagstore.KindWatchlistSave, fmt.Sprintf("items=%d", len(items)))
	return nil
}

func (dt *DeviceTracker) collectWatchlistItems() []watchlist.Item {
	var items []watchlist.Item
	for i := range dt.tables.anchors {
		a := &dt.tables.anchors[i]
		if !a.InUse || !a.watching() {
			continue
		}
		item := watchlist.Item{Kind: watchlist.KindWifiAp, Mac: watchlist.FormatMac(a.Addr)}
		if a.SSIDLen > 0 {
			item.SSID = watchlist.StringPtr(a.SSIDString())
		}
		if a.hasGeo() {
			item.Lat = watchlist.Float64Ptr(a.BestLat)
			item.Lon = watchlist.Float64Ptr(a.BestLon)
		}
		items = append(items, item)
	}
	for i := range dt.tables.tracks {
		t := &dt.tables.tracks[i]
		if !t.InUse || !t.watching() {
			continue
		}
		kind := watchlist.KindWifiClient
		if t.Kind == BleAdvertiser {
			kind = watchlist.KindBleAdv
		}
		item := watchlist.Item{Kind: kind, Mac: watchlist.FormatMac(t.Addr)}
		if t.hasGeo() {
			item.Lat = watchlist.Float64Ptr(t.LastLat)
			item.Lon = watchlist.Float64Ptr(t.LastLon)
		}
		if t.TrackerType != beacon.Unknown {
			item.TrackerType = watchlist.StringPtr(t.TrackerType.String())
		}
		if t.TrackerGoogleMfr != beacon.GoogleMfrUnknown {
			item.TrackerGoogleMfr = watchlist.StringPtr(t.TrackerGoogleMfr.String())
		}
		if t.TrackerSamsungSubtype != beacon.SamsungSubtypeUnknown {
			item.TrackerSamsungSubtype = watchlist.StringPtr(t.TrackerSamsungSubtype.String())
		}
		if t.TrackerConfidence > 0 {
			item.TrackerConfidence = watchlist.Uint8Ptr(t.TrackerConfidence)
		}
		items = append(items, item)
	}
	return items
}

// WriteWatchlistKML exports every geo-tagged Watching entity to a KML
// document at dt.kmlPath.
func (dt *DeviceTracker) WriteWatchlistKML() error {
	dt.mu.Lock()
	placemarks := dt.collectPlacemarks()
	dt.mu.Unlock()

	return watchlist.SaveKML(dt.fs, dt.watchlistDir, dt.kmlPath, placemarks)
}

func (dt *DeviceTracker) collectPlacemarks() []watchlist.Placemark {
	var placemarks []watchlist.Placemark
	for i := range dt.tables.anchors {
		a := &dt.tables.anchors[i]
		if !a.InUse || !a.watching() || !a.hasGeo() {
			continue
		}
		p := watchlist.Placemark{
			Kind: watchlist.KindWifiAp,
			Mac:  watchlist.FormatMac(a.Addr),
			Lat:  a.BestLat,
			Lon:  a.BestLon,
		}
		if a.SSIDLen > 0 {
			p.SSID, p.HasSSID = a.SSIDString(), true
		}
		placemarks = append(placemarks, p)
	}
	for i := range dt.tables.tracks {
		t := &dt.tables.tracks[i]
		if !t.InUse || !t.watching() || !t.hasGeo() {
			continue
		}
		kind := watchlist.KindWifiClient
		if t.Kind == BleAdvertiser {
			kind = watchlist.KindBleAdv
		}
		p := watchlist.Placemark{Kind: kind, Mac: watchlist.FormatMac(t.Addr), Lat: t.LastLat, Lon: t.LastLon}
		if t.TrackerType != beacon.Unknown {
			p.TrackerType, p.HasTracker = t.TrackerType.String(), true
		}
		placemarks = append(placemarks, p)
	}
	return placemarks
}

// DumpWatchlistFile writes the watchlist and its KML export in one call,
// for use by a maintenance/debug command.
func (dt *DeviceTracker) DumpWatchlistFile() error {
	if err := dt.WriteWatchlist(); err != nil {
		return err
	}
	return dt.WriteWatchlistKML()
}

// OutputLists returns the current watchlist document and placemark list
// without writing them to disk, for the diagnostics HTTP surface.
func (dt *DeviceTracker) OutputLists() (watchlist.Document, []watchlist.Placemark) {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return watchlist.NewDocument(dt.collectWatchlistItems()), dt.collectPlacemarks()
}
