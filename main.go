package main

import (
	"time"

	"github.com/bonaken/board/config"
	"github.com/bonaken/board/models"
	"github.com/bonaken/board/routes"
	"github.com/bonaken/board/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.Post{}, &models.Comment{}, &models.FritsUpdate{})

	// Reclaim upload files whose post never committed or was removed.
	utils.StartScreenshotSweeper(db, cfg.UploadsDir, time.Hour)

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("Starting board on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
