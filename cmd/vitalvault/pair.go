package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vitalvault/vitalvault/internal/crypto"
	"github.com/vitalvault/vitalvault/internal/pairing"
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Pair with the device's health export app",
	Long: `Pair exchanges a short code shown in the device app for an access
token, which is stored locally for all later exports.

When the device app has payload encryption enabled, the passphrase set
there is needed to decrypt exports; pair verifies it and reminds you
to add it to the config.`,
	Example: `  vitalvault pair
  vitalvault pair --server http://192.168.1.30:4820 --code 481D2C`,
	RunE: runPair,
}

var (
	pairCode       string
	pairPassphrase string
)

func init() {
	rootCmd.AddCommand(pairCmd)

	pairCmd.Flags().String("server", "",
		"Device address, overriding api.base_url")
	pairCmd.Flags().StringVar(&pairCode, "code", "",
		"Pairing code shown on the device (will prompt if not provided)")
	pairCmd.Flags().StringVar(&pairPassphrase, "passphrase", "",
		"Payload passphrase to verify when the device encrypts exports")
}

func runPair(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if pairCode == "" {
		var err error
		pairCode, err = promptLine("Pairing code shown on the device: ")
		if err != nil {
			return fmt.Errorf("read pairing code: %w", err)
		}
	}
	if pairCode == "" {
		return fmt.Errorf("pairing code is required")
	}

	resp, err := appClient.API().Pair(ctx, pairCode)
	if err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
		} else {
			printError("Pairing failed: %v", err)
		}
		return err
	}

	creds := &pairing.Credentials{
		ServerURL:  cfg.API.BaseURL,
		DeviceName: resp.DeviceName,
		Token:      resp.Token,
		PairedAt:   resp.PairedAt,
	}
	if resp.KeyInfo != nil {
		creds.KeyInfo = &crypto.PayloadKeyInfo{
			Version: resp.KeyInfo.Version,
			Salt:    resp.KeyInfo.Salt,
			Check:   resp.KeyInfo.Check,
		}
	}

	if err := appClient.Pairing.Save(creds); err != nil {
		return fmt.Errorf("save pairing credentials: %w", err)
	}

	if creds.Encrypted() {
		if err := verifyPassphrase(creds); err != nil {
			return err
		}
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":     true,
			"device_name": creds.DeviceName,
			"encrypted":   creds.Encrypted(),
		})
		return nil
	}

	printSuccess("Paired with %s", creds.DeviceName)
	if creds.Encrypted() {
		printInfo("Payload encryption is on; set pairing.passphrase in your config so exports can decrypt")
	}
	return nil
}

// verifyPassphrase derives the payload key and compares it against the
// check value the device published, so a typo surfaces now instead of
// on the first export.
func verifyPassphrase(creds *pairing.Credentials) error {
	passphrase := pairPassphrase
	if passphrase == "" {
		var err error
		passphrase, err = promptPassword("Payload passphrase (enter to skip verification): ")
		if err != nil {
			return fmt.Errorf("read passphrase: %w", err)
		}
	}
	if passphrase == "" {
		return nil
	}

	key, err := crypto.NewProvider().DeriveKey(passphrase, *creds.KeyInfo)
	if err != nil {
		return fmt.Errorf("verify passphrase: %w", err)
	}
	if err := crypto.VerifyKey(key, *creds.KeyInfo); err != nil {
		return fmt.Errorf("verify passphrase: %w", err)
	}

	if !jsonOutput {
		if creds.KeyInfo.Check != "" {
			printSuccess("Passphrase verified")
		} else {
			printInfo("Passphrase accepted; this device does not publish a key check")
		}
	}
	return nil
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password without echo
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", err
	}

	return string(password), nil
}
