package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cloudchat/server/internal/core"
	"github.com/cloudchat/server/internal/messaging"
	"github.com/cloudchat/server/internal/metrics"
	"github.com/cloudchat/server/internal/notify"
	"github.com/cloudchat/server/internal/profile"
	"github.com/cloudchat/server/internal/protocol"
	"github.com/cloudchat/server/internal/ratelimit"
	"github.com/cloudchat/server/internal/ws"
)

func main() {
	config := ws.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}

	coreConfig := core.DefaultConfig()
	if v := os.Getenv("MATCH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			coreConfig.MatchInterval = d
		}
	}
	if v := os.Getenv("REAP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			coreConfig.ReapInterval = d
		}
	}
	if v := os.Getenv("INACTIVITY_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			coreConfig.InactivityWindow = d
		}
	}
	if v := os.Getenv("SESSION_IDLE_CEILING"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			coreConfig.SessionIdleCeiling = d
		}
	}
	if os.Getenv("EXHAUSTIVE_MATCHING") == "true" {
		coreConfig.ExhaustiveMatching = true
	}

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig.URL = natsURL
	}
	natsConfig.Name = "cloudchat-chatd"
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	sink := messaging.NewArchiveSink(natsClient)

	// --- Redis (rate limiting) ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	cancel()
	limiter := ratelimit.NewLimiter(rdb)

	hub := notify.NewHub(notify.DefaultMaxChannels, notify.DefaultChannelDepth)
	chat := core.New(coreConfig, hub, sink)

	log.Printf("CloudChat server starting")
	log.Printf("  listen_addr:      %s", config.ListenAddr)
	log.Printf("  worker_pool:      %d", config.WorkerPoolSize)
	log.Printf("  max_connections:  %d", config.MaxConnections)
	log.Printf("  match_interval:   %s", coreConfig.MatchInterval)
	log.Printf("  reap_interval:    %s", coreConfig.ReapInterval)
	log.Printf("  nats_url:         %s", natsConfig.URL)
	log.Printf("  redis_addr:       %s", redisAddr)

	// Declare server early so closures can capture it.
	var server *ws.Server

	dispatcher := ws.NewMessageDispatcher(nil)

	// sendCoreError maps a core error to a structured error response.
	sendCoreError := func(conn *ws.Connection, err error) {
		var ce *core.Error
		if errors.As(err, &ce) {
			dispatcher.SendError(conn, string(ce.Kind), ce.Reason)
			return
		}
		dispatcher.SendError(conn, string(core.KindInternal), "internal error")
	}

	// requireName returns the display name bound to the connection, sending
	// a not_online error if the client has not claimed one.
	requireName := func(conn *ws.Connection) (string, bool) {
		name := conn.Name()
		if name == "" {
			dispatcher.SendError(conn, string(core.KindNotOnline), "claim a name first")
			return "", false
		}
		return name, true
	}

	// -----------------------------------------------------------------------
	// claim_name: register a display name and profile
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeClaimName, func(conn *ws.Connection, msg interface{}) {
		claimMsg, ok := msg.(protocol.ClaimNameMsg)
		if !ok {
			return
		}

		allowed, _ := limiter.Allow(context.Background(), conn.ID, ratelimit.RuleClaim)
		if !allowed {
			dispatcher.SendError(conn, "rate_limited", "too many claim attempts")
			return
		}

		prev := conn.Name()
		res, err := chat.Claim(claimMsg.Name, profile.Preferences{
			Gender:       claimMsg.Gender,
			AgeGroup:     claimMsg.AgeGroup,
			SearchGender: claimMsg.SearchGender,
			SearchAge:    claimMsg.SearchAge,
		})
		if err != nil {
			sendCoreError(conn, err)
			return
		}

		server.BindUser(conn, res.Name)
		if prev != "" && prev != res.Name {
			chat.Release(prev)
		}
		dispatcher.Send(conn, protocol.TypeClaimed, res)
		log.Printf("claim_name %s conn=%s (in_chat=%v)", res.Name, conn.ID, res.InChat)
	})

	// -----------------------------------------------------------------------
	// update_preferences: change search criteria
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeUpdatePrefs, func(conn *ws.Connection, msg interface{}) {
		prefsMsg, ok := msg.(protocol.UpdatePrefsMsg)
		if !ok {
			return
		}
		name, ok := requireName(conn)
		if !ok {
			return
		}
		if err := chat.UpdatePreferences(name, prefsMsg.SearchGender, prefsMsg.SearchAge); err != nil {
			sendCoreError(conn, err)
			return
		}
		dispatcher.Send(conn, protocol.TypePrefsSet, protocol.AckMsg{OK: true})
	})

	// -----------------------------------------------------------------------
	// find_partner: match now or join the waiting pool
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeFindPartner, func(conn *ws.Connection, msg interface{}) {
		name, ok := requireName(conn)
		if !ok {
			return
		}
		res, err := chat.FindPartner(name)
		if err != nil {
			sendCoreError(conn, err)
			return
		}
		if res.Matched {
			dispatcher.Send(conn, protocol.TypeMatched, res)
		} else {
			dispatcher.Send(conn, protocol.TypeWaiting, res)
		}
		log.Printf("find_partner %s (matched=%v)", name, res.Matched)
	})

	// -----------------------------------------------------------------------
	// stop_waiting: withdraw from the waiting pool
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeStopWaiting, func(conn *ws.Connection, msg interface{}) {
		name, ok := requireName(conn)
		if !ok {
			return
		}
		stopped, err := chat.StopWaiting(name)
		if err != nil {
			sendCoreError(conn, err)
			return
		}
		dispatcher.Send(conn, protocol.TypeStopped, protocol.AckMsg{OK: stopped})
	})

	// -----------------------------------------------------------------------
	// send_message: text message into a session
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSendMessage, func(conn *ws.Connection, msg interface{}) {
		sendMsg, ok := msg.(protocol.SendMessageMsg)
		if !ok {
			return
		}
		name, ok := requireName(conn)
		if !ok {
			return
		}

		allowed, _ := limiter.Allow(context.Background(), name, ratelimit.RuleMessage)
		if !allowed {
			dispatcher.SendError(conn, "rate_limited", "sending too fast")
			return
		}

		delivered, err := chat.Send(sendMsg.SessionID, name, sendMsg.Text)
		if err != nil {
			if core.KindOf(err) == core.KindValidation {
				metrics.MessagesTotal.WithLabelValues("rejected").Inc()
			}
			sendCoreError(conn, err)
			return
		}
		dispatcher.Send(conn, protocol.TypeMessage, delivered)
	})

	// -----------------------------------------------------------------------
	// send_media: media upload into a session
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSendMedia, func(conn *ws.Connection, msg interface{}) {
		mediaMsg, ok := msg.(protocol.SendMediaMsg)
		if !ok {
			return
		}
		name, ok := requireName(conn)
		if !ok {
			return
		}

		allowed, _ := limiter.Allow(context.Background(), name, ratelimit.RuleMedia)
		if !allowed {
			dispatcher.SendError(conn, "rate_limited", "uploading too fast")
			return
		}

		delivered, err := chat.SendMedia(mediaMsg.SessionID, name, mediaMsg.Kind, mediaMsg.Data, mediaMsg.Filename)
		if err != nil {
			if core.KindOf(err) == core.KindValidation {
				metrics.MessagesTotal.WithLabelValues("rejected").Inc()
			}
			sendCoreError(conn, err)
			return
		}
		dispatcher.Send(conn, protocol.TypeMessage, delivered)
	})

	// -----------------------------------------------------------------------
	// history: poll session messages newer than a timestamp
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeHistory, func(conn *ws.Connection, msg interface{}) {
		histMsg, ok := msg.(protocol.HistoryMsg)
		if !ok {
			return
		}
		name, ok := requireName(conn)
		if !ok {
			return
		}
		messages, err := chat.History(histMsg.SessionID, name, histMsg.Since)
		if err != nil {
			sendCoreError(conn, err)
			return
		}
		dispatcher.Send(conn, protocol.TypeHistoryPage, map[string]interface{}{
			"session_id": histMsg.SessionID,
			"messages":   messages,
		})
	})

	// -----------------------------------------------------------------------
	// chat_status: report whether the user is chatting, waiting, or idle
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeChatStatus, func(conn *ws.Connection, msg interface{}) {
		name, ok := requireName(conn)
		if !ok {
			return
		}
		dispatcher.Send(conn, protocol.TypeStatus, chat.Status(name))
	})

	// -----------------------------------------------------------------------
	// leave_session: exit the current chat
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeLeave, func(conn *ws.Connection, msg interface{}) {
		name, ok := requireName(conn)
		if !ok {
			return
		}
		if err := chat.Leave(name); err != nil {
			sendCoreError(conn, err)
			return
		}
		dispatcher.Send(conn, protocol.TypeLeft, protocol.AckMsg{OK: true})
		log.Printf("leave_session %s", name)
	})

	// -----------------------------------------------------------------------
	// online: recently active users
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeOnline, func(conn *ws.Connection, msg interface{}) {
		users := chat.ListActive()
		dispatcher.Send(conn, protocol.TypeOnlineList, protocol.OnlineListMsg{
			Users: users,
			Count: len(users),
		})
	})

	// -----------------------------------------------------------------------
	// heartbeat: refresh activity
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeHeartbeat, func(conn *ws.Connection, msg interface{}) {
		name, ok := requireName(conn)
		if !ok {
			return
		}
		if err := chat.Touch(name); err != nil {
			sendCoreError(conn, err)
			return
		}
		dispatcher.Send(conn, protocol.TypePong, protocol.PongMsg{})
	})

	// -----------------------------------------------------------------------
	// logout / force_logout: full teardown. force_logout comes from page
	// unload handlers and is never answered.
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeLogout, func(conn *ws.Connection, msg interface{}) {
		name, ok := requireName(conn)
		if !ok {
			return
		}
		dispatcher.Send(conn, protocol.TypeLoggedOut, protocol.AckMsg{OK: true})
		chat.Release(name)
	})
	dispatcher.Register(protocol.TypeForceLogout, func(conn *ws.Connection, msg interface{}) {
		if name := conn.Name(); name != "" {
			chat.Release(name)
		}
	})

	server = ws.NewServer(config, hub, func(conn *ws.Connection, data []byte) {
		start := time.Now()
		dispatcher.Dispatch(conn, data)
		metrics.CommandLatency.Observe(time.Since(start).Seconds())
	})
	dispatcher.SetServer(server)

	server.HandleFunc("/metrics", metrics.Handler().ServeHTTP)
	server.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chat.Stats())
	})

	chat.Start()

	// Population gauges, refreshed on a fixed cadence.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			snap := chat.Stats()
			metrics.OnlineUsers.Set(float64(snap.Online))
			metrics.WaitingUsers.Set(float64(snap.Waiting))
			metrics.ActiveSessions.Set(float64(snap.Sessions))
			metrics.ConnectionsTotal.Set(float64(server.Connections().Count()))
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		chat.Stop()
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		sink.Close()
		natsClient.Close()
		if err := rdb.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
