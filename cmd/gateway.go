package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nanogate/nanogate/internal/bus"
	"github.com/nanogate/nanogate/internal/scheduler"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the gateway: channel polling, scheduler, and delivery worker",
	RunE:  runGateway,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

// runGateway drives the concurrent activities: the channel-inbound loop
// (each message resolved by the router, run through the agent registry and
// answered on its channel directly, not through the gateway's send_message
// method), the webhook server when a webhook channel is registered, the
// scheduler tick, the delivery worker, and cancellation on SIGINT/SIGTERM
// with a bounded join timeout covering all of them.
func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()
	defer a.Gateway.Stop()

	if ids := a.Channels.IDs(); len(ids) > 0 {
		a.Logger.Info("channels enabled", zap.Strings("channels", ids))
	} else {
		a.Logger.Warn("no channels enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup

	a.Channels.StartAll(ctx)

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Channels.Poll(ctx, func(msg bus.InboundMessage) {
			handleInbound(ctx, a, msg)
		})
	}()

	if mux := a.Channels.Mux(); mux != nil {
		addr := cfg.Channels.WebhookAddr
		if addr == "" {
			addr = ":9000"
		}
		srv := &http.Server{Addr: addr, Handler: mux}
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Logger.Info("webhook server listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.Logger.Error("webhook server failed", zap.Error(err))
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
	}

	sched := &scheduler.Driver{
		Scheduler: a.Scheduler,
		Logger:    a.Logger,
		Run: func(ctx context.Context, j scheduler.Job, sessionKey string) (string, error) {
			return a.Registry.Run(ctx, j.AgentID, sessionKey, j.Prompt)
		},
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	worker := buildQueueWorker(a)
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	<-ctx.Done()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timeout := cfg.Gateway.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-done:
	case <-time.After(timeout):
		a.Logger.Warn("shutdown timed out, exiting anyway")
	}

	return nil
}

func handleInbound(ctx context.Context, a *app, msg bus.InboundMessage) {
	res := a.Router.Resolve(msg.Channel, msg.Sender)
	reply, err := a.Registry.Run(ctx, res.AgentID, res.SessionKey, msg.Text)
	if err != nil {
		a.Logger.Error("agent turn failed", zap.String("channel", msg.Channel), zap.Error(err))
		return
	}
	if err := a.Channels.Send(msg.Channel, msg.Sender, reply, msg.ThreadID); err != nil {
		a.Logger.Error("send failed", zap.String("channel", msg.Channel), zap.Error(err))
	}
}
