// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/ffutop/crow-host/crow/packet"
	"github.com/ffutop/crow-host/internal/host"
	"github.com/spf13/cobra"
)

// settingsCmd represents the settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect or change per-address line settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the effective settings of one or all addresses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		device, _ := cmd.Flags().GetString("device")
		addrFlag, _ := cmd.Flags().GetString("address")

		address, err := parseTarget(addrFlag)
		if err != nil {
			return err
		}
		a := newApp(cfg, false)
		defer a.Close()
		p, _, err := a.openPort(device)
		if err != nil {
			return err
		}
		return printSettings(os.Stdout, p, address)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Override settings of one or all addresses",
	Long: `Override the baud rate, transaction timeout or PropCR mode of one address,
or of every address with --address all. Changes are persisted to the
port's settings store.

Example usage:
  crowctl settings set --address all --baud 230400
  crowctl settings set --address 7 --timeout 2s --propcr
  crowctl settings set --address 7 --reset`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		device, _ := cmd.Flags().GetString("device")
		addrFlag, _ := cmd.Flags().GetString("address")

		address, err := parseTarget(addrFlag)
		if err != nil {
			return err
		}
		a := newApp(cfg, false)
		defer a.Close()
		p, pc, err := a.openPort(device)
		if err != nil {
			return err
		}
		if pc.Store.Type != "file" && pc.Store.Type != "mmap" {
			slog.Warn("Settings store is not persistent, changes are lost on exit", "port", p.Name(), "store", pc.Store.Type)
		}

		flags := cmd.Flags()
		changed := false
		if reset, _ := flags.GetBool("reset"); reset {
			if err := p.Reset(address); err != nil {
				return err
			}
			changed = true
		}
		if flags.Changed("baud") {
			baud, _ := flags.GetInt("baud")
			if err := p.SetBaudrate(address, baud); err != nil {
				return err
			}
			changed = true
		}
		if flags.Changed("timeout") {
			timeout, _ := flags.GetDuration("timeout")
			if err := p.SetTransactionTimeout(address, timeout); err != nil {
				return err
			}
			changed = true
		}
		if flags.Changed("propcr") {
			propcr, _ := flags.GetBool("propcr")
			if err := p.SetPropCROrder(address, propcr); err != nil {
				return err
			}
			changed = true
		}
		if !changed {
			return errors.New("nothing to set: give --baud, --timeout, --propcr or --reset")
		}

		if err := a.save(p); err != nil {
			return err
		}
		slog.Info("Settings updated", "port", p.Name(), "address", addrFlag)
		return printSettings(os.Stdout, p, address)
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)

	for _, c := range []*cobra.Command{settingsGetCmd, settingsSetCmd} {
		c.Flags().StringP("device", "d", "", "Serial device (default: the only configured port)")
		c.Flags().StringP("address", "a", "all", "Device address or \"all\"")
	}
	settingsSetCmd.Flags().Int("baud", 0, "Baud rate")
	settingsSetCmd.Flags().Duration("timeout", 0, "Transaction timeout")
	settingsSetCmd.Flags().Bool("propcr", false, "PropCR byte order for command payloads")
	settingsSetCmd.Flags().Bool("reset", false, "Drop overrides before applying other flags")
}

// parseTarget accepts an address or "all".
func parseTarget(s string) (int, error) {
	if strings.EqualFold(strings.TrimSpace(s), "all") {
		return host.All, nil
	}
	address, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	if address < 0 || address > packet.MaxAddress {
		return 0, fmt.Errorf("address %d out of range [0, %d]", address, packet.MaxAddress)
	}
	return address, nil
}

// printSettings writes the effective settings of address, or of every
// address for host.All. Overridden values are marked with '*'.
func printSettings(w io.Writer, p *host.HostSerialPort, address int) error {
	overrides := p.Overrides()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tBAUDRATE\tTIMEOUT\tPROPCR")

	for addr := 0; addr < packet.NumAddresses; addr++ {
		if address != host.All && addr != address {
			continue
		}
		r, err := p.Resolve(addr)
		if err != nil {
			return err
		}
		o := overrides[addr]
		fmt.Fprintf(tw, "%d\t%d%s\t%v%s\t%t%s\n", addr,
			r.Baudrate, mark(o.Baudrate != nil),
			r.TransactionTimeout, mark(o.TransactionTimeout != nil),
			r.PropCROrder, mark(o.PropCROrder != nil))
	}
	return tw.Flush()
}

func mark(overridden bool) string {
	if overridden {
		return "*"
	}
	return ""
}
