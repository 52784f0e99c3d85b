package scheduler

import (
	"context"
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/x402vault/internal/database"
	"github.com/mdouchement/x402vault/internal/model"
	"github.com/mdouchement/x402vault/internal/storage"
	"github.com/mdouchement/x402vault/internal/webserver/service"
	"github.com/robfig/cron/v3"
)

// A Controller is an Inversion Of Control pattern used to init the reaper.
type Controller struct {
	Logger        logger.Logger
	Database      database.Client
	Storage       storage.Backend
	Specification string
	// Grace is the window after logical expiry during which a previously
	// issued signed URL must remain valid before physical deletion.
	Grace time.Duration
}

// Start launches the reaper asynchronously.
func Start(c Controller) {
	cron := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	log := c.Logger.WithPrefix("[scheduler]")

	_, err := cron.AddFunc(c.Specification, func() {
		Sweep(c)
	})
	if err != nil {
		panic(err)
	}
	log.Info("Reaper task registred")

	cron.Start()
	log.Info("Scheduler is running")
}

// Sweep promotes time-expired objects to expired, then physically deletes
// expired objects whose deletion grace has elapsed. Individual failures
// are logged and skipped, the sweep always continues.
func Sweep(c Controller) {
	log := c.Logger.WithPrefix("[reaper]")
	now := time.Now()

	objects, err := c.Database.AllObjects()
	if err != nil {
		log.Error(err)
		return
	}

	for _, object := range objects {
		if object.Status != model.ObjectExpired && object.TimeExpired(now) {
			object.Status = model.ObjectExpired
			if err := c.Database.Save(object); err != nil {
				log.Error(err)
				continue
			}
		}

		if object.Status != model.ObjectExpired {
			continue
		}

		dueByDeleteAfter := !object.DeleteAfter.IsZero() && now.After(object.DeleteAfter)
		dueByExpiry := !object.ExpiresAt.IsZero() && now.Sub(object.ExpiresAt) >= c.Grace
		if !dueByDeleteAfter && !dueByExpiry {
			continue
		}

		destroyer := service.NewObjectDestroyer(c.Logger, c.Database, c.Storage, object)
		if err := destroyer.Destroy(context.Background()); err != nil {
			log.Error(err)
			continue
		}

		log.Infof("Removed %s", object.Key)
	}
}
