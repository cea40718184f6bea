// Command sfi is an interactive client for the inventory manager core. It
// wires the Session Agent and the Inventory Store Agent together, prints
// their broadcasts, and accepts commands on stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/Tanja-4732/sfi-web/internal/models"
	"github.com/Tanja-4732/sfi-web/internal/session"
	"github.com/Tanja-4732/sfi-web/internal/storage/sqlite"
	"github.com/Tanja-4732/sfi-web/internal/store"
	"github.com/Tanja-4732/sfi-web/pkg/logging"
	"github.com/Tanja-4732/sfi-web/pkg/metrics"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	debug := flag.Bool("debug", false, "enable debug affordances (MakeDebugInventory)")
	flag.Parse()

	logging.Setup()

	backendURL := getEnv("SFI_BACKEND_URL", "http://localhost:8080")
	dbPath := getEnv("SFI_DB_PATH", "./data/sfi.db")
	metricsAddr := os.Getenv("SFI_METRICS_ADDR")

	kv, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer kv.Close()
	slog.Info("Storage initialized", "database", dbPath)

	client, err := session.NewClient(backendURL)
	if err != nil {
		slog.Error("Failed to create backend client", "error", err)
		os.Exit(1)
	}
	auth := session.NewAgent(client, slog.Default())

	agent, err := store.New(store.Config{
		Storage: kv,
		Session: auth,
		Logger:  slog.Default(),
		Debug:   *debug,
	})
	if err != nil {
		slog.Error("Failed to start store agent", "error", err)
		os.Exit(1)
	}
	defer agent.Close()

	if metricsAddr != "" {
		go func() {
			slog.Info("Metrics listener starting", "address", metricsAddr)
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				slog.Error("Metrics listener failed", "error", err)
			}
		}()
	}

	// Print every broadcast so the terminal behaves like a subscribed view.
	_, authCh := auth.Subscribe()
	go func() {
		for st := range authCh {
			if st.User != nil {
				fmt.Printf("<- auth: %s (%s)\n", st.Phase, st.User.Name)
			} else if st.Err != nil {
				fmt.Printf("<- auth: %s (%v)\n", st.Phase, st.Err)
			} else {
				fmt.Printf("<- auth: %s\n", st.Phase)
			}
		}
	}()
	_, listCh := agent.Subscribe()
	go func() {
		for list := range listCh {
			fmt.Printf("<- inventories: %d\n", len(list))
			for _, inv := range list {
				fmt.Printf("   %s  %-20s  %d items\n", inv.UUID, inv.Name, len(inv.Items))
			}
		}
	}()

	ctx := context.Background()
	auth.GetAuthStatus(ctx)

	fmt.Println("sfi - type 'help' for commands")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		if quit := dispatch(ctx, auth, agent, strings.Fields(scanner.Text())); quit {
			break
		}
	}

	auth.Wait()
}

func dispatch(ctx context.Context, auth *session.Agent, agent *store.Agent, args []string) (quit bool) {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "help":
		printHelp()

	case "status":
		auth.GetAuthStatus(ctx)

	case "login":
		if len(args) != 3 {
			fmt.Println("usage: login <name> <password>")
			return false
		}
		auth.Login(ctx, models.Credentials{Name: args[1], Password: args[2]})

	case "signup":
		if len(args) != 3 {
			fmt.Println("usage: signup <name> <password>")
			return false
		}
		auth.Signup(ctx, models.Registration{Name: args[1], Password: args[2]})

	case "logout":
		auth.Logout(ctx)

	case "ls":
		if err := agent.GetInventories(ctx); err != nil {
			fmt.Println("error:", err)
		}

	case "create":
		if len(args) < 2 {
			fmt.Println("usage: create <name>")
			return false
		}
		id, err := agent.CreateInventory(ctx, strings.Join(args[1:], " "))
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		fmt.Println("created inventory", id)

	case "rename":
		if len(args) < 3 {
			fmt.Println("usage: rename <inventory-uuid> <name>")
			return false
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		inv, err := agent.GetInventory(ctx, id)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		if _, err := agent.UpdateInventory(ctx, store.InventoryUpdate{
			Target:    id,
			Name:      strings.Join(args[2:], " "),
			Owner:     inv.Owner,
			Admins:    inv.Admins,
			Writables: inv.Writables,
			Readables: inv.Readables,
		}); err != nil {
			fmt.Println("error:", err)
		}

	case "rm":
		if len(args) != 2 {
			fmt.Println("usage: rm <inventory-uuid>")
			return false
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		if err := agent.DeleteInventory(ctx, id); err != nil {
			fmt.Println("error:", err)
		}

	case "add":
		if len(args) < 3 {
			fmt.Println("usage: add <inventory-uuid> <name> [ean]")
			return false
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		var ean *string
		if len(args) > 3 {
			ean = &args[3]
		}
		itemID, err := agent.CreateItem(ctx, id, args[2], ean)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		fmt.Println("created item", itemID)

	case "item":
		if len(args) != 3 {
			fmt.Println("usage: item <inventory-uuid> <item-uuid>")
			return false
		}
		invID, err1 := uuid.Parse(args[1])
		itemID, err2 := uuid.Parse(args[2])
		if err1 != nil || err2 != nil {
			fmt.Println("error: malformed uuid")
			return false
		}
		item, err := agent.GetItem(ctx, invID, itemID)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		if item.EAN != nil {
			fmt.Printf("%s  %s  ean %s\n", item.UUID, item.Name, *item.EAN)
		} else {
			fmt.Printf("%s  %s\n", item.UUID, item.Name)
		}

	case "rmitem":
		if len(args) != 3 {
			fmt.Println("usage: rmitem <inventory-uuid> <item-uuid>")
			return false
		}
		invID, err1 := uuid.Parse(args[1])
		itemID, err2 := uuid.Parse(args[2])
		if err1 != nil || err2 != nil {
			fmt.Println("error: malformed uuid")
			return false
		}
		if err := agent.DeleteItem(ctx, invID, itemID); err != nil {
			fmt.Println("error:", err)
		}

	case "wipe":
		if err := agent.DeleteAllData(ctx); err != nil {
			fmt.Println("error:", err)
		}

	case "debug":
		id, err := agent.MakeDebugInventory(ctx)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		fmt.Println("created debug inventory", id)

	case "quit", "exit":
		return true

	default:
		fmt.Println("unknown command; type 'help'")
	}
	return false
}

func printHelp() {
	fmt.Println(`commands:
  status                       probe the backend for the current session
  login <name> <password>      log in
  signup <name> <password>     create an account and log in
  logout                       log out
  ls                           broadcast the inventory list
  create <name>                create an inventory (requires login)
  rename <inv-uuid> <name>     rename an inventory
  rm <inv-uuid>                delete an inventory
  add <inv-uuid> <name> [ean]  add an item
  item <inv-uuid> <item-uuid>  show an item
  rmitem <inv-uuid> <item-uuid> delete an item
  wipe                         delete all data
  debug                        create a debug inventory (needs --debug)
  quit                         exit`)
}
