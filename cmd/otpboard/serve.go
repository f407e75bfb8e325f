package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"otpboard/api/internal/auth"
	"otpboard/api/internal/httpapi"
	"otpboard/api/internal/mail"
	"otpboard/api/internal/otp"
	"otpboard/api/internal/store"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) newSender() (mail.Sender, error) {
	if !a.cfg.MailEnabled() {
		a.log.Warn("smtp credentials not set, outgoing mail will only be logged")
		return mail.LogSender{Log: a.log}, nil
	}
	return mail.NewSMTPSender(mail.SMTPOptions{
		Host:     a.cfg.SMTP.Host,
		Port:     a.cfg.SMTP.Port,
		Username: a.cfg.SMTP.Username,
		Password: a.cfg.SMTP.Password,
		From:     a.cfg.SMTP.From,
		Timeout:  a.cfg.SMTP.Timeout,
	})
}

func (a *app) serve(ctx context.Context) error {
	st, closeStore, err := a.openStore(ctx, true)
	if err != nil {
		return err
	}
	defer closeStore()

	sender, err := a.newSender()
	if err != nil {
		return err
	}
	dispatcher := mail.NewDispatcher(sender, a.cfg.Mail.Workers, a.cfg.Mail.Queue, a.log)

	ln, err := net.Listen("tcp", a.cfg.ListenAddr())
	if err != nil {
		_ = dispatcher.Close(ctx)
		return err
	}
	return a.run(ctx, ln, st, dispatcher)
}

// run serves HTTP on ln and the OTP reaper until ctx is done. Shutdown stops
// the HTTP server first so in-flight logins finish queueing mail, then drains
// the dispatcher.
func (a *app) run(ctx context.Context, ln net.Listener, st store.Store, dispatcher *mail.Dispatcher) error {
	ledger := otp.NewLedger(st, a.cfg.OTPTTL, otp.WithLogger(a.log))
	authSvc, err := auth.NewService(st, ledger, dispatcher, a.cfg.BcryptCost, a.log)
	if err != nil {
		_ = ln.Close()
		_ = dispatcher.Close(ctx)
		return err
	}

	srv := httpapi.NewServer(a.cfg, st, authSvc, dispatcher, a.log)
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ledger.RunReaper(gctx, a.cfg.OTPReapInterval)
		return nil
	})

	g.Go(func() error {
		a.log.WithField("addr", ln.Addr().String()).Info("otpboard listening")
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutdown requested")

		ctxShutdown, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctxShutdown); err != nil {
			a.log.WithError(err).Warn("http shutdown")
		}
		if err := dispatcher.Close(ctxShutdown); err != nil {
			a.log.WithError(err).Warn("mail queue not drained")
		}
		return nil
	})

	return g.Wait()
}
