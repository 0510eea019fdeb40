package config

import (
	"errors"
	"flag"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a server address in format [host]:[port]
//	-d database DSN (server: postgres DSN, client: sqlite file path)
//	-blobs-dir image blob storage directory
//	-base-url remote sync server base URL (client)
//	-c/-config json file path with configs
//	-token-sign-key session token signing key
//	-token-issuer session token issuer name
//	-token-duration session token duration (e.g., "720h")
//	-magic-link-ttl magic link lifetime (e.g., "15m")
//	-request-timeout request timeout (e.g., "30s", "1m")
//	-sync-interval auto-sync period (e.g., "5m")
//	-sync-debounce change-triggered sync debounce window (e.g., "5s")
//	-janitor-interval orphan blob scan period (e.g., "1h")
//	-janitor-grace minimum orphan age before removal (e.g., "24h")
func ParseFlags() *StructuredConfig {
	var serverAddress NetAddress
	var databaseDSN string
	var blobsDir string
	var baseURL string
	var jsonConfigPath string
	var tokenSignKey string
	var tokenIssuer string
	var tokenDuration time.Duration
	var magicLinkTTL time.Duration
	var requestTimeout time.Duration
	var syncInterval time.Duration
	var syncDebounce time.Duration
	var janitorInterval time.Duration
	var janitorGrace time.Duration

	flag.Var(&serverAddress, "a", "Net address host:port")
	flag.StringVar(&databaseDSN, "d", "", "Database DSN")
	flag.StringVar(&blobsDir, "blobs-dir", "", "Image blob storage directory")
	flag.StringVar(&baseURL, "base-url", "", "Remote sync server base URL")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.StringVar(&tokenSignKey, "token-sign-key", "", "Session token signing key")
	flag.StringVar(&tokenIssuer, "token-issuer", "", "Session token issuer")
	flag.DurationVar(&tokenDuration, "token-duration", 0, "Session token duration (e.g., 720h)")
	flag.DurationVar(&magicLinkTTL, "magic-link-ttl", 0, "Magic link lifetime (e.g., 15m)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Auto-sync period (e.g., 5m)")
	flag.DurationVar(&syncDebounce, "sync-debounce", 0, "Change-triggered sync debounce window (e.g., 5s)")
	flag.DurationVar(&janitorInterval, "janitor-interval", 0, "Orphan blob scan period (e.g., 1h)")
	flag.DurationVar(&janitorGrace, "janitor-grace", 0, "Minimum orphan age before removal (e.g., 24h)")

	flag.Parse()

	return &StructuredConfig{
		Auth: Auth{
			TokenSignKey:  tokenSignKey,
			TokenIssuer:   tokenIssuer,
			TokenDuration: tokenDuration,
			MagicLinkTTL:  magicLinkTTL,
		},
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
			Blobs: Blobs{
				Dir: blobsDir,
			},
		},
		Server: Server{
			HTTPAddress:    serverAddress.String(),
			RequestTimeout: requestTimeout,
		},
		Adapter: Adapter{
			BaseURL:        baseURL,
			RequestTimeout: requestTimeout,
		},
		Sync: Sync{
			Interval: syncInterval,
			Debounce: syncDebounce,
		},
		Workers: Workers{
			JanitorInterval: janitorInterval,
			JanitorGrace:    janitorGrace,
		},
		JSONFilePath: jsonConfigPath,
	}
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns an empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
