package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reversync/reversync/app"
	"github.com/reversync/reversync/base/logging"
	_ "github.com/reversync/reversync/implementations/memory"
	"github.com/reversync/reversync/reversynclib"
	"github.com/reversync/reversync/reversynclib/protocol"
)

func main() {
	exitChannel := make(chan os.Signal, 1)
	signal.Notify(exitChannel, os.Interrupt, os.Kill, syscall.SIGTERM)

	appConfig, err := app.InitAppConfig()
	if err != nil {
		panic(err)
	}
	credentials, err := appConfig.DestinationCredentials()
	if err != nil {
		panic(err)
	}
	destination, err := reversynclib.CreateDestination(reversynclib.Config{
		Id:              appConfig.InstanceId,
		DestinationType: appConfig.DestinationType,
		Credentials:     credentials,
	})
	if err != nil {
		panic(err)
	}
	governor := reversynclib.NewGovernor(destination)
	coordinator := reversynclib.NewCoordinator(destination, governor, &reversynclib.CoordinatorOptions{
		BatchTimeout:  time.Duration(appConfig.BatchTimeoutMs) * time.Millisecond,
		RecordWorkers: appConfig.RecordWorkers,
	})
	dispatcher := protocol.NewDispatcher(destination, governor, coordinator)
	router := app.NewRouter(appConfig, dispatcher)

	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", appConfig.HTTPPort),
		Handler:           router.Engine(),
		ReadTimeout:       time.Second * 60,
		ReadHeaderTimeout: time.Second * 60,
		IdleTimeout:       time.Second * 65,
	}
	go func() {
		sig := <-exitChannel
		logging.Infof("Received signal: %s. Shutting down...", sig)
		_ = server.Shutdown(context.Background())
		_ = destination.Close()
		os.Exit(0)
	}()
	logging.Infof("Starting connector runtime %s on %s", appConfig.InstanceId, server.Addr)
	logging.Info(server.ListenAndServe())
}
