// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ffutop/crow-host/internal/host"
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [payload]",
	Short: "Send one command to a device",
	Long: `Send one Crow command and print the device's response.

The payload is sent as text unless --hex is given. Line settings for the
address come from the settings registry of the port.

Example usage:
  crowctl send --address 1 --port 32 PING
  crowctl send --address 3 --port 7 --hex 0102ff --decode u16be,i8,ascii3
  crowctl send --address 0 --port 1 --no-response RESET`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		device, _ := cmd.Flags().GetString("device")
		address, _ := cmd.Flags().GetInt("address")
		port, _ := cmd.Flags().GetInt("port")
		hexMode, _ := cmd.Flags().GetBool("hex")
		noResponse, _ := cmd.Flags().GetBool("no-response")
		loopback, _ := cmd.Flags().GetBool("loopback")
		decode, _ := cmd.Flags().GetString("decode")

		var payload []byte
		if len(args) == 1 {
			if hexMode {
				b, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
				if err != nil {
					return fmt.Errorf("invalid hex payload: %w", err)
				}
				payload = b
			} else {
				payload = []byte(args[0])
			}
		}

		schema, err := parseSchema(decode)
		if err != nil {
			return err
		}

		a := newApp(cfg, loopback)
		defer a.Close()
		p, pc, err := a.openPort(device)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		h := host.NewHost(p, pc.MaxRetries)
		tx, err := h.Send(ctx, address, port, payload, !noResponse)
		if err != nil {
			return err
		}
		if !tx.HasResponse() {
			return nil
		}
		return printResponse(os.Stdout, tx, schema)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringP("device", "d", "", "Serial device (default: the only configured port)")
	sendCmd.Flags().IntP("address", "a", 1, "Device address (0 broadcasts)")
	sendCmd.Flags().IntP("port", "p", 32, "Crow port on the device")
	sendCmd.Flags().Bool("hex", false, "Interpret payload as hex")
	sendCmd.Flags().Bool("no-response", false, "Do not wait for a response")
	sendCmd.Flags().Bool("loopback", false, "Use an in-process echo device instead of the serial port")
	sendCmd.Flags().String("decode", "", "Decode the response with a comma separated field list, e.g. u16be,i8,ascii3")
}
