// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ffutop/crow-host/internal/config"
	crowtransport "github.com/ffutop/crow-host/transport/crow"
	"github.com/ffutop/crow-host/transport/local"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Emulate Crow devices on a serial port",
	Long: `Answer Crow commands on a serial port as one or more devices would.
Every command is echoed back as its response. Broadcasts are accepted but
never answered.

Example usage:
  crowctl serve --device /dev/ttyUSB1 --addresses 1,2,5-10
  crowctl serve --device /dev/ttyUSB1 --addresses 3 --propcr`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		device, _ := cmd.Flags().GetString("device")
		addrList, _ := cmd.Flags().GetString("addresses")
		propcr, _ := cmd.Flags().GetBool("propcr")

		addresses, err := config.ParseAddresses(addrList)
		if err != nil {
			return err
		}
		a := newApp(cfg, false)
		pc, err := a.portConfig(device)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("propcr") {
			propcr = pc.PropCROrder
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		srv := crowtransport.NewServer(pc.Serial, addresses, propcr)
		done := make(chan error, 1)
		go func() {
			done <- srv.Start(ctx, func(ctx context.Context, address, port int, payload []byte) ([]byte, error) {
				slog.Info("Command received", "address", address, "port", port, "size", len(payload))
				return local.Echo(ctx, address, port, payload)
			})
		}()

		// Wait for Signal
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigChan:
		case err := <-done:
			return err
		}

		slog.Info("Shutting down...")
		cancel()
		<-done
		return srv.Close()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("device", "d", "", "Serial device (default: the only configured port)")
	serveCmd.Flags().String("addresses", "", "Addresses to answer, e.g. 1,2,5-10 (default: all)")
	serveCmd.Flags().Bool("propcr", false, "Expect PropCR-ordered command payloads")
}
