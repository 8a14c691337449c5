/*
 * Copyright 2024 Marco Confalonieri.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/common/expfmt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"transip-dns-cli/internal/config"
	"transip-dns-cli/internal/ipecho"
	"transip-dns-cli/internal/metrics"
	"transip-dns-cli/internal/transip"
	"transip-dns-cli/internal/transip/auth"
	"transip-dns-cli/internal/transip/model"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transipdns",
		Short: "Manage a DNS record at TransIP",
		Long: "transipdns creates, updates or deletes a single DNS record in a TransIP\n" +
			"zone, or lists the zone. The record content can be resolved by querying a\n" +
			"public IP-echo service. Every flag can also be supplied as a TID_*\n" +
			"environment variable; explicit flags take precedence.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	f := cmd.Flags()
	f.StringP("user", "u", "", "TransIP login name (env TID_USER)")
	f.StringP("private-key", "p", "", "private key as PEM text (env TID_PRIVATE_KEY)")
	f.StringP("private-key-file", "f", "", "path to the private key file (env TID_PRIVATE_KEY_FILE)")
	f.String("token", "", "pre-issued access token (env TID_TOKEN)")

	f.StringP("domainname", "d", "", "the domain name, i.e. the targeted zone (env TID_DOMAINNAME)")
	f.StringP("record-name", "n", "", "name of the targeted record (env TID_RECORD_NAME)")
	f.StringP("record-type", "t", "", "type of the targeted record, default A (env TID_RECORD_TYPE)")
	f.IntP("record-ttl", "e", 0, "TTL in seconds, required when creating a new record (env TID_RECORD_TTL)")
	f.StringP("record-data", "r", "", "record content, overrides IP discovery (env TID_RECORD_DATA)")

	f.StringP("query-ipv4", "q", "", "discover the record content from an IPv4 echo service (env TID_QUERY_IPV4)")
	f.String("query-ipv6", "", "discover the record content from an IPv6 echo service (env TID_QUERY_IPV6)")
	f.Lookup("query-ipv4").NoOptDefVal = "true"
	f.Lookup("query-ipv6").NoOptDefVal = "true"

	f.Bool("list", false, "list the records in the zone (env TID_LIST)")
	f.Bool("domains", false, "list the available domains (env TID_DOMAINS)")
	f.Bool("delete", false, "delete the targeted record (env TID_DELETE)")

	f.StringP("log", "l", "INFO", "log level (env TID_LOG)")
	f.String("log-format", "console", "log format, console or fileformat (env TID_LOG_FORMAT)")
	f.Duration("timeout", transip.DefaultTimeout, "connection timeout (env TID_TIMEOUT)")
	f.Uint64("retries", transip.DefaultRetries, "retries after a conflict response (env TID_RETRIES)")
	f.Duration("retry-delay", transip.DefaultRetryDelay, "delay between conflict retries (env TID_RETRY_DELAY)")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Resolve(cmd.Flags())
	if err != nil {
		return err
	}
	setupLogging(cfg)
	logger := log.StandardLogger()
	defer dumpMetrics(logger)

	tokens, err := tokenSource(cfg)
	if err != nil {
		return err
	}

	client := transip.NewClient(tokens, transip.ClientOptions{
		BaseURL:    cfg.APIURL,
		Timeout:    cfg.Timeout,
		Retries:    cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	dispatcher := transip.NewDispatcher(client, logger)

	ctx := cmd.Context()
	spec := cfg.RecordSpec()

	switch {
	case cfg.Domains:
		names, err := dispatcher.Domains(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, ", "))
		return nil

	case cfg.List:
		entries, err := dispatcher.ListZone(ctx, spec)
		if err != nil {
			return err
		}
		renderEntries(cmd.OutOrStdout(), spec.Zone, entries)
		return nil

	case cfg.Delete:
		return dispatcher.Delete(ctx, &spec)

	default:
		if echoURL := cfg.QueryURL(); echoURL != "" {
			address, err := ipecho.Resolve(ctx, &http.Client{Timeout: cfg.Timeout}, echoURL)
			if err != nil {
				return err
			}
			logger.Debugf("Discovered public address %s via %s", address, echoURL)
			spec.Content = address
		}
		return dispatcher.Ensure(ctx, &spec)
	}
}

// tokenSource selects between a pre-issued token and the signing token
// manager.
func tokenSource(cfg *config.Config) (transip.TokenSource, error) {
	if cfg.Token != "" {
		return transip.StaticToken(cfg.Token), nil
	}
	return auth.NewManager(auth.Options{
		Login:          cfg.User,
		PrivateKey:     cfg.PrivateKey,
		PrivateKeyFile: cfg.PrivateKeyFile,
		ExpirationTime: cfg.TokenTTL,
		GlobalKey:      true,
		AuthURL:        cfg.AuthURL,
		Timeout:        cfg.Timeout,
	})
}

func setupLogging(cfg *config.Config) {
	// The level was validated during configuration resolution.
	level, err := log.ParseLevel(cfg.Log)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "fileformat" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// dumpMetrics reports the run's API call counters at debug level. A one-shot
// invocation has no listener to scrape, so the registry is rendered as text
// on the way out.
func dumpMetrics(logger log.FieldLogger) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	families, err := metrics.GetOpenMetricsInstance().GetRegistry().Gather()
	if err != nil {
		return
	}
	var buf bytes.Buffer
	for _, f := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, f); err != nil {
			return
		}
	}
	logger.Debugf("Run metrics:\n%s", buf.String())
}

// renderEntries prints the zone listing as an aligned table.
func renderEntries(w io.Writer, zone string, entries []model.RecordEntry) {
	fmt.Fprintf(w, "Records in %s\n", zone)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Type", "Content", "TTL"})
	table.SetAutoWrapText(false)
	for _, e := range entries {
		content := e.Content
		if len(content) > 64 {
			content = content[:64] + "..."
		}
		table.Append([]string{e.Name, e.Type, content, strconv.Itoa(int(e.TTL))})
	}
	table.Render()
}

// exitCode maps an error to the process exit code: an API rejection exits
// with its HTTP status, a usage error with 2, anything else with 1.
func exitCode(err error) int {
	var httpErr *transip.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var usageErr *config.UsageError
	if errors.As(err, &usageErr) {
		return 2
	}
	return 1
}

func main() {
	root := newRootCmd()
	root.SetContext(context.Background())
	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(exitCode(err))
	}
}
