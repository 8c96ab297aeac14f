package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"flockrank/internal/cmdlog"
	"flockrank/internal/config"
	"flockrank/internal/demo"
	"flockrank/internal/engine"
	"flockrank/internal/metrics"
	"flockrank/internal/store"
	"flockrank/internal/store/sqlitestore"
	"flockrank/internal/theme"
	"flockrank/internal/xauth"
	"flockrank/internal/xclient"
)

const pendingAuthPath = "./.flockrank_auth.json"

func main() {
	_ = godotenv.Load()
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "login":
		cmdLogin()
	case "callback":
		cmdCallback()
	case "connect":
		cmdConnect()
	case "sync":
		cmdSync()
	case "board":
		cmdBoard()
	case "followers":
		cmdFollowers()
	case "actions":
		cmdActions()
	case "exclude":
		cmdExclude()
	case "reply":
		cmdReply()
	case "seed":
		cmdSeed()
	case "disconnect":
		cmdDisconnect()
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: flockrank <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./flockrank.yaml")
	fmt.Println("  login       Print the OAuth authorization URL")
	fmt.Println("  callback    Finish the OAuth flow with -code and -state")
	fmt.Println("  connect     Connect with a manually supplied bearer token")
	fmt.Println("  sync        Sync followers and engagement from the platform")
	fmt.Println("  board       Show the weighted engagement leaderboard")
	fmt.Println("  followers   List synced followers")
	fmt.Println("  actions     List one follower's engagement actions")
	fmt.Println("  exclude     Toggle a follower's exclusion flag")
	fmt.Println("  reply       Seed a reply action by hand")
	fmt.Println("  seed        Load the demo snapshot (demo: true in config)")
	fmt.Println("  disconnect  Clear credentials and snapshot")
}

func loadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	return cfg
}

func authClient(cfg config.Config) *xauth.Client {
	return xauth.NewClient(xauth.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURI:  cfg.OAuth.RedirectURI,
		Scopes:       cfg.OAuth.Scopes,
		AuthorizeURL: cfg.Provider.AuthorizeURL,
		TokenURL:     cfg.Provider.TokenURL,
	})
}

// buildEngine wires the store, authenticator, client factory, and metrics
// from config. This is the only place backends and the demo flag are chosen.
func buildEngine(cfg config.Config) (*engine.Engine, func()) {
	metrics.StartServer(cfg.Metrics.Addr)
	var st store.Store
	cleanup := func() {}
	if cfg.Storage.DBPath != "" {
		db, err := sqlitestore.Open(cfg.Storage.DBPath)
		if err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		st = db
		cleanup = func() { _ = db.Close() }
	} else {
		st = store.NewMemory()
	}
	auth := authClient(cfg)
	factory := func(token string) xclient.Client {
		return xclient.NewHTTPClient(cfg.Provider.BaseURL, token)
	}
	eng := engine.New(st, auth, factory, engine.Options{
		PostLimit: cfg.Sync.PostLimit,
		FanOut:    cfg.Sync.FanOut,
		Timeout:   cfg.Sync.Timeout(),
	})
	return eng, cleanup
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./flockrank.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	cfg := config.Default()
	if err := config.Save(*path, cfg); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
}

func cmdLogin() {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	cfgPath := fs.String("config", "./flockrank.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	_ = cmdlog.Run("login", func() error {
		auth := authClient(cfg)
		pending := xauth.PendingAuth{State: xauth.NewState(), Verifier: xauth.NewVerifier()}
		if err := xauth.SavePending(pendingAuthPath, pending); err != nil {
			return err
		}
		fmt.Println("Open this URL, authorize, then run: flockrank callback -code <code> -state <state>")
		fmt.Println(auth.BuildAuthorizationURL(pending.State, pending.Verifier))
		return nil
	})
}

func cmdCallback() {
	fs := flag.NewFlagSet("callback", flag.ExitOnError)
	cfgPath := fs.String("config", "./flockrank.yaml", "config path")
	code := fs.String("code", "", "authorization code from the redirect")
	state := fs.String("state", "", "state parameter from the redirect")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	err := cmdlog.Run("callback", func() error {
		pending, err := xauth.LoadPending(pendingAuthPath)
		if err != nil {
			return fmt.Errorf("no pending login (run flockrank login first): %w", err)
		}
		// state must match before any exchange happens
		if err := xauth.VerifyState(pending.State, *state); err != nil {
			return err
		}
		auth := authClient(cfg)
		ctx := context.Background()
		cred, err := auth.ExchangeCode(ctx, *code, pending.Verifier)
		if err != nil {
			return err
		}
		eng, cleanup := buildEngine(cfg)
		defer cleanup()
		handle, err := eng.ConnectAuthorized(ctx, cfg.Account.ID, cred)
		if err != nil {
			return err
		}
		_ = xauth.RemovePending(pendingAuthPath)
		fmt.Println("Connected as @" + handle)
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdConnect() {
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	cfgPath := fs.String("config", "./flockrank.yaml", "config path")
	token := fs.String("token", "", "bearer access token")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	if *token == "" {
		*token = os.Getenv("X_ACCESS_TOKEN")
	}
	err := cmdlog.Run("connect", func() error {
		eng, cleanup := buildEngine(cfg)
		defer cleanup()
		handle, err := eng.Connect(context.Background(), cfg.Account.ID, *token)
		if err != nil {
			return err
		}
		fmt.Println("Connected as @" + handle)
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdSync() {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	cfgPath := fs.String("config", "./flockrank.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	err := cmdlog.Run("sync", func() error {
		eng, cleanup := buildEngine(cfg)
		defer cleanup()
		res, err := eng.Sync(context.Background(), cfg.Account.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Synced @%s: %d followers, %d actions\n", res.Handle, res.FollowersSynced, res.ActionsSynced)
		for _, f := range res.Failures {
			fmt.Printf("  skipped %s %s: %s\n", f.Step, f.PostID, f.Err)
		}
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdBoard() {
	fs := flag.NewFlagSet("board", flag.ExitOnError)
	cfgPath := fs.String("config", "./flockrank.yaml", "config path")
	page := fs.Int("page", 1, "page number (1-indexed)")
	size := fs.Int("size", 20, "entries per page")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	err := cmdlog.Run("board", func() error {
		eng, cleanup := buildEngine(cfg)
		defer cleanup()
		board, err := eng.GetLeaderboard(context.Background(), cfg.Account.ID, *page, *size)
		if err != nil {
			return err
		}
		rankN := (*page-1)*(*size) + 1
		for i, e := range board.Entries {
			fmt.Printf("%3d. @%-20s score=%-4d reposts=%d replies=%d likes=%d rate=%.3f\n",
				rankN+i, e.Handle, e.Score, e.RepostCount, e.ReplyCount, e.LikeCount, e.EngagementRate)
		}
		if len(board.Entries) == 0 {
			fmt.Println("(empty page)")
		}
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdFollowers() {
	fs := flag.NewFlagSet("followers", flag.ExitOnError)
	cfgPath := fs.String("config", "./flockrank.yaml", "config path")
	query := fs.String("q", "", "filter by handle or display name")
	all := fs.Bool("all", false, "include excluded followers")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	err := cmdlog.Run("followers", func() error {
		eng, cleanup := buildEngine(cfg)
		defer cleanup()
		list, err := eng.Followers(context.Background(), cfg.Account.ID, *query, *all)
		if err != nil {
			return err
		}
		for _, f := range list {
			mark := " "
			if f.Excluded {
				mark = "x"
			}
			fmt.Printf("[%s] %-24s @%-20s %s\n", mark, f.ID, f.Handle, f.DisplayName)
		}
		fmt.Printf("%d followers\n", len(list))
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdActions() {
	fs := flag.NewFlagSet("actions", flag.ExitOnError)
	cfgPath := fs.String("config", "./flockrank.yaml", "config path")
	follower := fs.String("follower", "", "local follower id")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	err := cmdlog.Run("actions", func() error {
		eng, cleanup := buildEngine(cfg)
		defer cleanup()
		acts, err := eng.Actions(context.Background(), cfg.Account.ID, *follower)
		if err != nil {
			return err
		}
		for _, a := range acts {
			fmt.Printf("%-7s %s %s\n", a.Kind, a.PostID, a.PostURL)
		}
		fmt.Printf("%d actions\n", len(acts))
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdExclude() {
	fs := flag.NewFlagSet("exclude", flag.ExitOnError)
	cfgPath := fs.String("config", "./flockrank.yaml", "config path")
	follower := fs.String("follower", "", "local follower id")
	undo := fs.Bool("undo", false, "re-include the follower")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	err := cmdlog.Run("exclude", func() error {
		eng, cleanup := buildEngine(cfg)
		defer cleanup()
		return eng.SetExcluded(context.Background(), cfg.Account.ID, *follower, !*undo)
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdReply() {
	fs := flag.NewFlagSet("reply", flag.ExitOnError)
	cfgPath := fs.String("config", "./flockrank.yaml", "config path")
	follower := fs.String("follower", "", "local follower id")
	post := fs.String("post", "", "post id that was replied to")
	postURL := fs.String("url", "", "post url")
	text := fs.String("text", "", "reply text")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	err := cmdlog.Run("reply", func() error {
		eng, cleanup := buildEngine(cfg)
		defer cleanup()
		return eng.SeedReply(context.Background(), cfg.Account.ID, *follower, *post, *postURL, *text)
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdSeed() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	cfgPath := fs.String("config", "./flockrank.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	if !cfg.Demo {
		fmt.Println("error: seed requires demo: true in config")
		os.Exit(1)
	}
	err := cmdlog.Run("seed", func() error {
		var st store.Store
		if cfg.Storage.DBPath != "" {
			db, err := sqlitestore.Open(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			st = db
		} else {
			st = store.NewMemory()
		}
		return demo.Seed(context.Background(), st, cfg.Account.ID, time.Now().UTC())
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdDisconnect() {
	fs := flag.NewFlagSet("disconnect", flag.ExitOnError)
	cfgPath := fs.String("config", "./flockrank.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	err := cmdlog.Run("disconnect", func() error {
		eng, cleanup := buildEngine(cfg)
		defer cleanup()
		return eng.Disconnect(context.Background(), cfg.Account.ID)
	})
	if err != nil {
		os.Exit(1)
	}
}
