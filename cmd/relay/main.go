// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Command relay runs the CORS proxy in front of the vendor API. Browser
// clients that cannot call the API directly POST proxy requests here and
// get a normalized response envelope back.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/scc-digitalhub/dap-export-sdk/sdk/relay"
	"github.com/scc-digitalhub/dap-export-sdk/sdk/utils"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := utils.RegisterIniCfgWithViper(); err != nil {
		log.Error("configuration failed", "err", err)
		os.Exit(1)
	}

	trust := relay.TrustSystem
	if viper.GetString(utils.DapTrustPolicy) == string(relay.TrustInsecure) {
		trust = relay.TrustInsecure
	}

	timeout := time.Duration(viper.GetInt(utils.DapTimeoutSeconds)) * time.Second
	ex := relay.NewExecutor(relay.Options{
		Timeout: timeout,
		Trust:   trust,
		Logger:  log,
	})

	path := viper.GetString(utils.DapRelayPath)
	if path == "" {
		path = utils.DefaultRelayPath
	}
	router := relay.NewRouter(ex, relay.HandlerConfig{
		Path:   path,
		Logger: log,
	})

	listen := viper.GetString(utils.DapRelayListen)
	if listen == "" {
		listen = ":8787"
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("relay listening", "addr", listen, "path", path)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("relay stopped", "err", err)
		os.Exit(1)
	}
}
