// Command auction-sim exercises the bid engine end to end: it opens a set
// of auctions, fires concurrent bidders (a mix of manual and proxy bids)
// at them, lets the deadlines fire, and reports the outcomes. Optionally
// journals every event to a file and serves a WebSocket feed of the
// live event stream.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/royalbidz/bidcore/clock"
	"github.com/royalbidz/bidcore/core"
	"github.com/royalbidz/bidcore/engine"
	"github.com/royalbidz/bidcore/eventsink"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("SIM_DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}

	auctions := getEnvInt(log, "SIM_AUCTIONS", 4)
	bidders := getEnvInt(log, "SIM_BIDDERS", 8)
	bidsPerBidder := getEnvInt(log, "SIM_BIDS_PER_BIDDER", 25)
	windowMs := getEnvInt(log, "SIM_WINDOW_MS", 1500)

	memory := eventsink.NewMemory()
	sinks := []eventsink.Sink{memory}

	var journal *eventsink.Journal
	if path := os.Getenv("SIM_JOURNAL"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			log.WithError(err).Fatal("failed to create journal file")
		}
		defer f.Close()
		journal = eventsink.NewJournal(f)
		sinks = append(sinks, journal)
		log.WithField("path", path).Info("journaling events")
	}

	if addr := os.Getenv("SIM_WS_ADDR"); addr != "" {
		hub := eventsink.NewWSHub(log)
		sinks = append(sinks, hub)
		go func() {
			log.WithField("addr", addr).Info("serving websocket event feed")
			if err := http.ListenAndServe(addr, hub); err != nil {
				log.WithError(err).Error("websocket feed stopped")
			}
		}()
	}

	mgr := engine.NewManager(clock.New(), eventsink.Tee(sinks...), log, engine.Options{
		CloseOnBuyNow: true,
	})

	ctx := context.Background()
	window := time.Duration(windowMs) * time.Millisecond
	deadline := time.Now().Add(window)

	auctionIDs := make([]uuid.UUID, 0, auctions)
	for i := 0; i < auctions; i++ {
		cfg := core.AuctionConfig{
			AuctionID:     uuid.New(),
			StartingPrice: decimal.NewFromInt(int64(100 * (i + 1))),
			Increment:     decimal.NewFromInt(10),
		}
		if i%2 == 1 {
			cfg.ReservePrice = cfg.StartingPrice.Mul(decimal.NewFromInt(3))
		}
		if err := mgr.Create(cfg); err != nil {
			log.WithError(err).Fatal("failed to create auction")
		}
		if err := mgr.Open(ctx, cfg.AuctionID, deadline); err != nil {
			log.WithError(err).Fatal("failed to open auction")
		}
		auctionIDs = append(auctionIDs, cfg.AuctionID)
	}

	var wg sync.WaitGroup
	for b := 0; b < bidders; b++ {
		wg.Add(1)
		bidderID := uuid.New()
		go func() {
			defer wg.Done()
			for i := 0; i < bidsPerBidder; i++ {
				auctionID := auctionIDs[rand.Intn(len(auctionIDs))]
				view, err := mgr.Snapshot(auctionID)
				if err != nil {
					return
				}
				req := core.BidRequest{
					AuctionID: auctionID,
					BidderID:  bidderID,
					Amount:    core.MinimumNextBid(view).Add(decimal.NewFromInt(int64(rand.Intn(3) * 5))),
				}
				// Every fifth bid is a proxy bid with headroom.
				if i%5 == 0 {
					req.IsAutomatic = true
					req.MaxAutoBidAmount = req.Amount.Add(decimal.NewFromInt(int64(50 + rand.Intn(100))))
				}
				if _, _, err := mgr.Submit(context.Background(), req); err != nil {
					return
				}
				time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	// Let the deadlines fire.
	time.Sleep(time.Until(deadline) + 250*time.Millisecond)

	for _, id := range auctionIDs {
		view, err := mgr.Snapshot(id)
		if err != nil {
			log.WithError(err).Error("snapshot failed")
			continue
		}
		entry := log.WithFields(logrus.Fields{
			"auction_id": id,
			"status":     view.Status.String(),
			"accepted":   view.AcceptedCount,
			"rejected":   view.RejectedCount,
		})
		if view.Closed != nil {
			entry = entry.WithFields(logrus.Fields{
				"reason":      view.Closed.Reason,
				"final_price": view.Closed.FinalPrice,
				"winner_id":   view.Closed.WinnerID,
			})
		}
		entry.Info("auction result")
	}

	events := memory.Events()
	log.WithField("events", len(events)).Info("simulation complete")

	if journal != nil {
		if err := journal.Err(); err != nil {
			log.WithError(err).Fatal("journal reported a write error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("shutdown failed")
	}
}

// getEnvInt reads an integer environment variable, falling back to def
// when unset. Invalid values are fatal rather than silently defaulted.
func getEnvInt(log *logrus.Logger, key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatal(fmt.Sprintf("invalid value for %s: %s (must be a valid integer)", key, value))
	}
	log.WithFields(logrus.Fields{"key": key, "value": intValue}).Info("using environment override")
	return intValue
}
