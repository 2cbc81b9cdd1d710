package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Emil-Frisk/Final-Project/src/Api"
	"github.com/Emil-Frisk/Final-Project/src/DataStore"
	"github.com/Emil-Frisk/Final-Project/src/UnitManager"
	"github.com/Emil-Frisk/Final-Project/src/IdentityManager"
	"github.com/Emil-Frisk/Final-Project/src/Web"
	"github.com/Emil-Frisk/Final-Project/src/archive"
	"github.com/Emil-Frisk/Final-Project/src/cleanup"
	"github.com/Emil-Frisk/Final-Project/src/config"
	"github.com/Emil-Frisk/Final-Project/src/udp"
)

// sessionLogger adapts the standard logger to udp.Logger.
type sessionLogger struct{ prefix string }

func (l sessionLogger) Printf(format string, args ...any) {
	log.Printf(l.prefix+format, args...)
}

// archiverOrNil returns a, boxed as the metrics-archiver interface Api
// expects, or a true nil interface when a is nil. Passing a nil
// *archive.Archiver directly would box into a non-nil interface with a
// nil underlying pointer, breaking the handler's "archiver != nil" check.
func archiverOrNil(a *archive.Archiver) Api.MetricsArchiver {
	if a == nil {
		return nil
	}
	return a
}

func Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer func() {
		stop()
		fmt.Println("系统正常关闭")
	}()
	go start(ctx)
	<-ctx.Done()
}

func start(ctx context.Context) {
	cfgPath := os.Getenv("RIGLINK_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	db, err := DataStore.NewDataStoreSql(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}

	ab, err := Web.SetupAuthboss(db, cfg.HTMLDir, cfg.WebAddr)
	if err != nil {
		log.Fatal(err)
	}

	im := IdentityManager.NewIdentityManager(db)
	dm := UnitManager.NewUnitManager(db, im)

	var archiver *archive.Archiver
	if cfg.ArchiveDSN != "" {
		archiver, err = archive.Open(ctx, cfg.ArchiveDSN)
		if err != nil {
			log.Fatal(err)
		}
		defer archiver.Close()
	}

	api := Api.NewApi(db, dm, im, cfg.APIAddr, archiverOrNil(archiver))

	web := Web.NewWebServer(db, dm, im, api, cfg.HTMLDir, ab, cfg.WebAddr)
	go web.Start()
	go api.Start()

	links := startUDPLinks(cfg)
	defer func() {
		for _, s := range links {
			s.Close()
		}
	}()

	<-ctx.Done()
}

// startUDPLinks brings up the cleanup listener and both rig links
// (excavator drive/telemetry, motion-platform orientation mirror),
// performing the handshake for each before returning. A link that
// fails to come up is logged and skipped rather than aborting the
// whole process.
func startUDPLinks(cfg *config.Config) []*udp.Session {
	var sessions []*udp.Session
	for i, link := range []struct {
		name string
		cfg  config.UDPLinkConfig
	}{
		{"excavator", cfg.ExcavatorLink},
		{"motion", cfg.MotionLink},
	} {
		// Each link gets its own loopback cleanup listener: the
		// watchdog's teardown signal must map unambiguously back to
		// the session that tripped it.
		cl, err := cleanup.Listen(cfg.CleanupPort + i)
		if err != nil {
			log.Printf("riglink: %s cleanup listener failed to bind: %v", link.name, err)
			continue
		}
		go cl.Start()

		s := udp.New(udp.Options{
			LocalMaxAge:   link.cfg.LocalMaxAge,
			SendType:      udp.TypeF32,
			SocketTimeout: link.cfg.SocketTimeout,
			DelayTracking: link.cfg.DelayTracking,
			TCPPort:       cl.Port(),
			Logger:        sessionLogger{prefix: "udp[" + link.name + "]: "},
		})
		linkName := link.name
		cl.OnCleanup(func() {
			log.Printf("riglink: %s link watchdog tripped, closing session", linkName)
			s.Close()
		})

		if err := s.Setup(link.cfg.Host, link.cfg.Port, link.cfg.NumInputs, link.cfg.NumOutputs, link.cfg.Server); err != nil {
			log.Printf("riglink: %s link setup failed: %v", link.name, err)
			cl.Close()
			continue
		}
		if err := s.Handshake(0); err != nil {
			log.Printf("riglink: %s link handshake failed: %v", link.name, err)
			s.Close()
			cl.Close()
			continue
		}
		if err := s.Start(); err != nil {
			log.Printf("riglink: %s link failed to start: %v", link.name, err)
			s.Close()
			cl.Close()
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions
}
