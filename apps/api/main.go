package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"

	echoapi "github.com/campuskit/identity/apps/api/echo"
	"github.com/campuskit/identity/core"
	"github.com/campuskit/identity/core/member"
	"github.com/campuskit/identity/core/otp"
	"github.com/campuskit/identity/core/school"
	"github.com/campuskit/identity/core/user"
	emailsvc "github.com/campuskit/identity/services/email"
	logsvc "github.com/campuskit/identity/services/logger"
	ratelimitsvc "github.com/campuskit/identity/services/ratelimit"
	"github.com/campuskit/identity/storage/database"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.LoadConf()

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if conf.RollbarToken != "" {
		rl := logsvc.NewRollbarLogger(std, conf)
		rl.Enable(!conf.Debug)
		logger = rl
	} else {
		logger = logsvc.NewStdLogger(std)
	}

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()
	if err = database.Migrate(db); err != nil {
		logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	var limiter core.RateLimiter
	if conf.RedisURL != "" {
		opt, err := redis.ParseURL(conf.RedisURL)
		if err != nil {
			logger.Fatal(fmt.Sprintf("parsing redis url: %v", err), err)
		}
		limiter = ratelimitsvc.NewRedisLimiter(redis.NewClient(opt), conf.OTP.IssueWindow, conf.OTP.IssueLimit)
	} else {
		limiter = ratelimitsvc.NewInmemLimiter(conf.OTP.IssueWindow, conf.OTP.IssueLimit)
	}

	usrSvc := user.NewService(database.NewUserRepository(db))
	schSvc := school.NewService(database.NewSchoolRepository(db), usrSvc, mailSvc, logger)
	mbrSvc := member.NewService(database.NewMemberRepository(db), usrSvc, schSvc, mailSvc, logger)
	otpSvc := otp.NewService(database.NewOTPRepository(db), usrSvc, mailSvc, limiter, logger)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Logger:    logger,
			UserSvc:   usrSvc,
			SchoolSvc: schSvc,
			MemberSvc: mbrSvc,
			OTPSvc:    otpSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
