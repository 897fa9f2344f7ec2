package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/querygate/querygate/internal/classify"
	"github.com/querygate/querygate/internal/pool"
	"github.com/querygate/querygate/internal/store"
	"github.com/querygate/querygate/internal/vault"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// runAddConnection registers a database connection interactively: prompt for
// parameters, test connectivity, encrypt the credential, and persist the
// connection with a default-deny permission grid for every discovered
// database.
func runAddConnection() error {
	ctx := context.Background()

	serverConfig, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.NewFileStore(storeDir(serverConfig))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	name := promptInput("Connection name: ")
	engine := promptInput("Engine (postgres/mysql): ")
	if engine != "postgres" && engine != "mysql" {
		return fmt.Errorf("unsupported engine %q", engine)
	}
	host := promptInput("Host: ")
	portStr := promptInput("Port: ")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return fmt.Errorf("invalid port %q", portStr)
	}
	user := promptInput("Username: ")
	password := promptPassword("Password: ")
	dbname := ""
	if engine == "postgres" {
		dbname = promptInput("Database name in DSN (default: postgres): ")
	}

	fmt.Fprintln(os.Stderr, "Testing connection...")
	result, err := pool.Test(ctx, pool.Config{
		Engine:   pool.Engine(engine),
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		DBName:   dbname,
		MaxConns: 1,
	})
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Connected in %dms. Discovered databases: %s\n",
		result.Latency.Milliseconds(), strings.Join(result.Schemas, ", "))
	if len(result.Schemas) == 0 {
		return fmt.Errorf("no databases discovered on %s:%d", host, port)
	}

	active := promptInput(fmt.Sprintf("Active database (default: %s): ", result.Schemas[0]))
	if active == "" {
		active = result.Schemas[0]
	}
	found := false
	for _, schema := range result.Schemas {
		if schema == active {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("database %q was not discovered on the server", active)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
	v := vault.New(st, logger)
	secret, err := v.EncryptCredential(ctx, password)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	// Everything starts denied; the active database gets read access only.
	// Grants beyond that are deliberate edits to the stored record.
	databases := make(map[string]store.Database, len(result.Schemas))
	for _, schema := range result.Schemas {
		db := store.Database{Name: schema}
		if schema == active {
			db.Enabled = true
			db.Permissions = classify.Grid{Select: true}
		}
		databases[schema] = db
	}

	conn := &store.Connection{
		ID:             uuid.NewString(),
		Name:           name,
		Engine:         engine,
		Host:           host,
		Port:           port,
		User:           user,
		DBName:         dbname,
		Secret:         secret,
		Databases:      databases,
		ActiveDatabase: active,
	}
	if err := st.UpdateConnection(ctx, conn); err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}

	fmt.Printf("Connection %q saved with id %s\n", name, conn.ID)
	fmt.Printf("Active database %q is enabled with select permission; all other databases are disabled.\n", active)
	return nil
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var input string
	fmt.Scanln(&input)
	return input
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}
