// Command pt-tracker wires the device tracker core to its external
// collaborators: BLE scanning, an optional Wi-Fi pcap replay source for
// bench testing (a monitor-mode capture driver is the out-of-scope
// physical radio, but a recorded capture is fair game for exercising
// internal/dot11), the watchlist files, and the loopback diagnostics HTTP
// surface. It does not implement the raster UI, GNSS serial driver, or
// physical radio drivers — those remain external per spec.md §1.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"tinygo.org/x/bluetooth"

	"github.com/proxtrack/pt/internal/beacon"
	"github.com/proxtrack/pt/internal/bleadv"
	"github.com/proxtrack/pt/internal/config"
	"github.com/proxtrack/pt/internal/diagserver"
	"github.com/proxtrack/pt/internal/diagstore"
	"github.com/proxtrack/pt/internal/dot11"
	"github.com/proxtrack/pt/internal/monitoring"
	"github.com/proxtrack/pt/internal/tracker"
	"github.com/proxtrack/pt/internal/version"
)

var (
	configPath  = flag.String("config", "", "path to JSON operational config file (optional)")
	listen      = flag.String("listen", "", "diagnostics HTTP listen address (empty: the config's diag_listen_addr, default 127.0.0.1:8787)")
	watchDir    = flag.String("watchlist-dir", ".", "directory the watchlist/KML paths must resolve within")
	enableBLE   = flag.Bool("ble-scan", false, "enable live BLE scanning via the platform BLE adapter")
	wifiPcap    = flag.String("wifi-pcap", "", "replay Wi-Fi management frames from a pcap file instead of a live capture")
	versionFlag = flag.Bool("version", false, "print version information and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		log.Printf("pt-tracker %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.EmptyAppConfig()
	if *configPath != "" {
		loaded, err := config.LoadAppConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	store, err := diagstore.Open(cfg.GetDiagDBPath())
	var events tracker.EventRecorder
	if err != nil {
		monitoring.Logf("diagnostics store disabled: %v", err)
		store = nil
	} else {
		defer store.Close()
		events = store
	}

	dt := tracker.New(tracker.Config{
		WatchlistDir:  *watchDir,
		WatchlistPath: cfg.GetWatchlistPath(),
		KMLPath:       cfg.GetKMLPath(),
		Events:        events,
	})
	if err := dt.Begin(cfg.GetQueueCapacity()); err != nil {
		log.Fatalf("failed to start tracker: %v", err)
	}
	defer dt.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	if *enableBLE {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runBLEScan(ctx, dt)
		}()
	}

	if *wifiPcap != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := replayWifiPcap(ctx, dt, *wifiPcap); err != nil {
				monitoring.Logf("wifi pcap replay failed: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	diagserver.NewServer(dt, store).AttachAdminRoutes(mux)
	server := &http.Server{Addr: listenAddrOrDefault(cfg), Handler: mux}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("diagnostics HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("diagnostics HTTP server shutdown error: %v", err)
	}

	if err := dt.DumpWatchlistFile(); err != nil {
		log.Printf("failed to persist watchlist on shutdown: %v", err)
	}

	wg.Wait()
}

func listenAddrOrDefault(cfg *config.AppConfig) string {
	if *listen != "" {
		return *listen
	}
	return cfg.GetDiagListenAddr()
}

// runBLEScan drives the platform BLE adapter, classifies each
// advertisement, and enqueues the resulting Observation. It returns when
// ctx is canceled.
func runBLEScan(ctx context.Context, dt *tracker.DeviceTracker) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		monitoring.Logf("ble scan disabled: adapter enable failed: %v", err)
		return
	}

	go func() {
		<-ctx.Done()
		adapter.StopScan()
	}()

	err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		adv := bleadv.ToAdvertisement(result)
		info := beacon.Inspect(adv)
		obs := bleadv.ToObservation(result, info, time.Now().Unix())
		dt.Enqueue(obs)
	})
	if err != nil && ctx.Err() == nil {
		monitoring.Logf("ble scan stopped: %v", err)
	}
}

// replayWifiPcap decodes a recorded 802.11 management-frame capture and
// enqueues each frame as an Observation, standing in for a live
// monitor-mode capture during bench testing.
func replayWifiPcap(ctx context.Context, dt *tracker.DeviceTracker, path string) error {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return err
	}
	defer handle.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		data, ci, err := handle.ZeroCopyReadPacketData()
		if err != nil {
			return err
		}

		packet := gopacket.NewPacket(data, layers.LinkTypeIEEE80211Radio, gopacket.NoCopy)
		dot11Layer := packet.Layer(layers.LayerTypeDot11)
		if dot11Layer == nil {
			continue
		}

		rssi := int8(-100)
		if rt, ok := packet.Layer(layers.LayerTypeRadioTap).(*layers.RadioTap); ok {
			rssi = int8(rt.DBMAntennaSignal)
		}

		obs, decodeErr := dot11.DecodeManagementFrame(dot11Layer.LayerContents(), rssi, ci.Timestamp.Unix())
		if decodeErr != nil {
			continue
		}
		dt.Enqueue(obs)
	}
}
