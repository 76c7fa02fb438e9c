package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/toolgate/pkg/cli"
	securitytls "mercator-hq/toolgate/pkg/security/tls"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Inspect TLS certificates",
	Long: `Inspect the TLS certificates used by the admin server.

Subcommands:
  validate - Validate a certificate, its key, and its chain
  info     - Display certificate details

Examples:
  # Validate certificate and key
  toolgate certs validate --cert server.crt --key server.key

  # Display certificate information as JSON
  toolgate certs info --format json server.crt`,
}

var certsValidateFlags struct {
	certFile string
	keyFile  string
	caFile   string
}

var certsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate certificate and key",
	Long: `Validate a TLS certificate before pointing server.tls at it.

This command checks:
  - Certificate and key pair match (with --key)
  - Certificate chain against a CA (with --ca)
  - Certificate is within its validity period
  - Certificate expires in more than 30 days (warning only)

Examples:
  toolgate certs validate --cert server.crt --key server.key
  toolgate certs validate --cert server.crt --ca ca.pem`,
	RunE: runCertsValidate,
}

var certsInfoFlags struct {
	format string
}

var certsInfoCmd = &cobra.Command{
	Use:   "info [cert-file]",
	Short: "Display certificate details",
	Args:  cobra.ExactArgs(1),
	RunE:  runCertsInfo,
}

func init() {
	rootCmd.AddCommand(certsCmd)
	certsCmd.AddCommand(certsValidateCmd)
	certsCmd.AddCommand(certsInfoCmd)

	certsValidateCmd.Flags().StringVar(&certsValidateFlags.certFile, "cert", "", "certificate file (required)")
	certsValidateCmd.Flags().StringVar(&certsValidateFlags.keyFile, "key", "", "private key file")
	certsValidateCmd.Flags().StringVar(&certsValidateFlags.caFile, "ca", "", "CA certificate file")
	_ = certsValidateCmd.MarkFlagRequired("cert")

	certsInfoCmd.Flags().StringVar(&certsInfoFlags.format, "format", "text", "output format: text, json")
}

func runCertsValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating certificate: %s\n\n", certsValidateFlags.certFile)

	cert, err := securitytls.LoadCertificateFile(certsValidateFlags.certFile)
	if err != nil {
		return cli.NewCommandError("certs validate", err)
	}

	if certsValidateFlags.keyFile != "" {
		if _, err := tls.LoadX509KeyPair(certsValidateFlags.certFile, certsValidateFlags.keyFile); err != nil {
			fmt.Fprintln(out, "✗ Certificate and key do NOT match")
			return cli.NewCommandError("certs validate", err)
		}
		fmt.Fprintln(out, "✓ Certificate and key match")
	}

	if certsValidateFlags.caFile != "" {
		if err := securitytls.ValidateCertificateChain(cert, certsValidateFlags.caFile); err != nil {
			fmt.Fprintln(out, "✗ Certificate chain invalid")
			return cli.NewCommandError("certs validate", err)
		}
		fmt.Fprintln(out, "✓ Certificate chain valid")
	}

	if err := securitytls.ValidateX509Certificate(cert); err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		return cli.NewCommandError("certs validate", err)
	}
	fmt.Fprintf(out, "✓ Certificate valid until %s\n", cert.NotAfter.Format("2006-01-02"))

	if days, soon := securitytls.CheckCertificateExpiration(cert); soon {
		fmt.Fprintf(out, "⚠  Certificate expires in %d days\n", days)
	}

	printCertSummary(out, cert)
	return nil
}

func printCertSummary(w io.Writer, cert *x509.Certificate) {
	info := securitytls.ExtractCertificateInfo(cert)

	fmt.Fprintln(w, "\nCertificate Details:")
	fmt.Fprintf(w, "  Subject: %s\n", info.Subject)
	fmt.Fprintf(w, "  Issuer: %s\n", info.Issuer)
	fmt.Fprintf(w, "  Serial: %s\n", info.SerialNumber)
	fmt.Fprintf(w, "  Valid From: %s\n", info.NotBefore.Format(time.RFC3339))
	fmt.Fprintf(w, "  Valid Until: %s\n", info.NotAfter.Format(time.RFC3339))
	if len(info.DNSNames) > 0 {
		fmt.Fprintf(w, "  SANs (DNS): %v\n", info.DNSNames)
	}
	if len(info.IPAddresses) > 0 {
		fmt.Fprintf(w, "  SANs (IP): %v\n", info.IPAddresses)
	}
}

func runCertsInfo(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(certsInfoFlags.format)
	if err != nil {
		return cli.NewConfigError("format", err.Error())
	}

	cert, err := securitytls.LoadCertificateFile(args[0])
	if err != nil {
		return cli.NewCommandError("certs info", err)
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		days, soon := securitytls.CheckCertificateExpiration(cert)
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*securitytls.CertificateInfo
			DaysRemaining int  `json:"days_remaining"`
			ExpiringSoon  bool `json:"expiring_soon"`
			IsCA          bool `json:"is_ca"`
		}{securitytls.ExtractCertificateInfo(cert), days, soon, cert.IsCA})
	}

	fmt.Fprintf(out, "Certificate: %s\n", args[0])
	printCertSummary(out, cert)
	return nil
}
