package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/consensys/gnark/logger"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"

	"sagittarius-zk/internal/action"
	"sagittarius-zk/internal/app"
	"sagittarius-zk/internal/codec"
	"sagittarius-zk/internal/game"
	"sagittarius-zk/internal/proof"
	"sagittarius-zk/internal/zk"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "setup":
		err = cmdSetup(os.Args[2:])
	case "init":
		err = cmdInit(ctx, os.Args[2:])
	case "prove":
		err = withKind(os.Args[2:], func(k action.Kind, args []string) error { return cmdProve(ctx, k, args) })
	case "verify":
		err = withKind(os.Args[2:], cmdVerify)
	default:
		usage()
		return
	}
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Sagittarius-ZK CLI

Commands:
  setup  --keys ./keys
  init   --keys ./keys --secret secret.json --out init.cbor
  prove  turn    --secret secret.json --row R --col C --out turn.cbor
  prove  scout   --secret secret.json --row R --col C --out scout.cbor
  prove  cluster --secret secret.json --ul R,C --dr R,C --seed S --out cluster.cbor
  verify init    --receipt init.cbor
  verify turn    --receipt turn.cbor --digest HEAD --row R --col C
  verify scout   --receipt scout.cbor --digest HEAD --row R --col C
  verify cluster --receipt cluster.cbor --digest HEAD --ul R,C --dr R,C --seed S

Every command takes --keys and --log-level.`)
}

func withKind(args []string, run func(action.Kind, []string) error) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("missing action")
	}
	k, err := action.ParseKind(args[0])
	if err != nil {
		return err
	}
	return run(k, args[1:])
}

type common struct {
	keys  *string
	level *string
}

func newFlags(name string) (*flag.FlagSet, common) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs, common{
		keys:  fs.String("keys", "./keys", "keys directory"),
		level: fs.String("log-level", "info", "log level (debug, info, warn, error)"),
	}
}

// open configures logging and loads or generates the keys of every action.
func (c common) open() (*app.Service, error) {
	lvl, err := zerolog.ParseLevel(*c.level)
	if err != nil {
		return nil, err
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).With().Timestamp().Logger()
	logger.Set(log)

	spinner, _ := pterm.DefaultSpinner.Start("loading keys from " + *c.keys)
	svc, _, err := app.Open(app.Config{KeysDir: *c.keys, Logger: &log})
	if err != nil {
		spinner.Fail(err)
		return nil, err
	}
	spinner.Success("keys ready")
	return svc, nil
}

func cmdSetup(args []string) error {
	fs, c := newFlags("setup")
	_ = fs.Parse(args)
	_, err := c.open()
	return err
}

func cmdInit(ctx context.Context, args []string) error {
	fs, c := newFlags("init")
	secretPath := fs.String("secret", "secret.json", "defender secret state")
	out := fs.String("out", "init.cbor", "receipt output")
	_ = fs.Parse(args)

	svc, err := c.open()
	if err != nil {
		return err
	}
	st, err := svc.NewState()
	if err != nil {
		return err
	}
	var digest game.Digest
	res, err := prove(action.Init, func() (*codec.ReceiptFile, error) {
		r, err := svc.Commit(ctx, st)
		if err != nil {
			return nil, err
		}
		digest = r.Secret.Digest
		if err := codec.SaveJSON(*secretPath, &r.Secret); err != nil {
			return nil, err
		}
		return &codec.ReceiptFile{Action: action.Init.String(), Receipt: *r.Receipt}, nil
	})
	if err != nil {
		return err
	}
	if err := codec.SaveCBOR(*out, res); err != nil {
		return err
	}
	renderBoard(st)
	pterm.Success.Printfln("wrote %s and %s (digest %s)", *secretPath, *out, digest)
	return nil
}

func prove(k action.Kind, run func() (*codec.ReceiptFile, error)) (*codec.ReceiptFile, error) {
	spinner, _ := pterm.DefaultSpinner.Start("proving " + k.String())
	rf, err := run()
	if err != nil {
		spinner.Fail(err)
		return nil, err
	}
	spinner.Success(k.String() + " receipt " + rf.Receipt.ID().String())
	return rf, nil
}

func cmdProve(ctx context.Context, k action.Kind, args []string) error {
	fs, c := newFlags("prove " + k.String())
	secretPath := fs.String("secret", "secret.json", "defender secret state")
	out := fs.String("out", k.String()+".cbor", "receipt output")
	row := fs.Int("row", 0, "row [0..9]")
	col := fs.Int("col", 0, "col [0..9]")
	ul := fs.String("ul", "0,0", "cluster upper-left corner R,C")
	dr := fs.String("dr", "9,9", "cluster down-right corner R,C")
	seed := fs.Uint("seed", 0, "cluster seed [0..255]")
	_ = fs.Parse(args)

	if k == action.Init {
		return fmt.Errorf("use the init command to commit a board")
	}
	var sec codec.Secret
	if err := codec.LoadJSON(*secretPath, &sec); err != nil {
		return err
	}
	svc, err := c.open()
	if err != nil {
		return err
	}

	var summary string
	rf, err := prove(k, func() (*codec.ReceiptFile, error) {
		var r *zk.Receipt
		switch k {
		case action.Turn:
			pos, err := position(*row, *col)
			if err != nil {
				return nil, err
			}
			res, err := svc.Shoot(ctx, sec, pos)
			if err != nil {
				return nil, err
			}
			r, sec, summary = res.Receipt, res.Secret, res.Hit.String()
		case action.Scout:
			pos, err := position(*row, *col)
			if err != nil {
				return nil, err
			}
			res, err := svc.Scout(ctx, sec, pos)
			if err != nil {
				return nil, err
			}
			r, summary = res.Receipt, hitsString(res.Cells)
		case action.Cluster:
			cfg, err := clusterConfig(*ul, *dr, *seed)
			if err != nil {
				return nil, err
			}
			res, err := svc.Cluster(ctx, sec, cfg)
			if err != nil {
				return nil, err
			}
			r, sec, summary = res.Receipt, res.Secret, shotsString(res.Shots, res.Hits)
		}
		return &codec.ReceiptFile{Action: k.String(), Receipt: *r}, nil
	})
	if err != nil {
		return err
	}
	if err := codec.SaveCBOR(*out, rf); err != nil {
		return err
	}
	// scouting leaves the board unchanged; the rest moves it forward
	if k != action.Scout {
		if err := codec.SaveJSON(*secretPath, &sec); err != nil {
			return err
		}
	}
	pterm.Success.Printfln("wrote %s (%s)", *out, summary)
	return nil
}

func cmdVerify(k action.Kind, args []string) error {
	fs, c := newFlags("verify " + k.String())
	receiptPath := fs.String("receipt", k.String()+".cbor", "receipt file")
	digestHex := fs.String("digest", "", "state digest the receipt must build on")
	row := fs.Int("row", 0, "row [0..9]")
	col := fs.Int("col", 0, "col [0..9]")
	ul := fs.String("ul", "0,0", "cluster upper-left corner R,C")
	dr := fs.String("dr", "9,9", "cluster down-right corner R,C")
	seed := fs.Uint("seed", 0, "cluster seed [0..255]")
	_ = fs.Parse(args)

	var rf codec.ReceiptFile
	if err := codec.LoadCBOR(*receiptPath, &rf); err != nil {
		return err
	}
	if rf.Action != k.String() {
		return fmt.Errorf("%s holds a %s receipt", *receiptPath, rf.Action)
	}
	head, err := parseHead(k, *digestHex)
	if err != nil {
		return err
	}

	svc, err := c.open()
	if err != nil {
		return err
	}
	v := svc.Verifier()
	r := &rf.Receipt

	switch k {
	case action.Init:
		d, err := v.CheckInit(r)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("board committed, digest %s", d)
	case action.Turn:
		pos, err := position(*row, *col)
		if err != nil {
			return err
		}
		hit, next, err := v.CheckTurn(r, pos, head)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("%s at %s, new digest %s", strings.ToUpper(hit.String()), pos, next)
	case action.Scout:
		pos, err := position(*row, *col)
		if err != nil {
			return err
		}
		res, err := v.Verify(r, proof.ScoutExpected{Shot: pos})
		if err != nil {
			return err
		}
		if res.NewDigest != head {
			return fmt.Errorf("scout describes board %s, not %s", res.NewDigest, head)
		}
		pterm.Success.Printfln("scout around %s: %s", pos, hitsString(res.Cells))
	case action.Cluster:
		cfg, err := clusterConfig(*ul, *dr, *seed)
		if err != nil {
			return err
		}
		shots, hits, next, err := v.CheckCluster(r, cfg.UpperLeft, cfg.DownRight, cfg.Seed, head)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("%s, new digest %s", shotsString(shots, hits), next)
	}
	return nil
}

// parseHead reads the --digest flag. Only init receipts stand without a head.
func parseHead(k action.Kind, s string) (game.Digest, error) {
	var head game.Digest
	if s == "" {
		if k != action.Init {
			return head, fmt.Errorf("--digest required: %s receipts are checked against the current head", k)
		}
		return head, nil
	}
	err := head.UnmarshalText([]byte(s))
	return head, err
}

func position(row, col int) (game.Position, error) {
	if row < 0 || row >= game.Size || col < 0 || col >= game.Size {
		return game.Position{}, fmt.Errorf("row/col out of range")
	}
	return game.Position{Row: uint8(row), Col: uint8(col)}, nil
}

func parsePosition(s string) (game.Position, error) {
	var row, col int
	if _, err := fmt.Sscanf(s, "%d,%d", &row, &col); err != nil {
		return game.Position{}, fmt.Errorf("bad corner %q: %v", s, err)
	}
	return position(row, col)
}

func clusterConfig(ul, dr string, seed uint) (game.ClusterConfig, error) {
	if seed > 255 {
		return game.ClusterConfig{}, fmt.Errorf("seed out of range")
	}
	a, err := parsePosition(ul)
	if err != nil {
		return game.ClusterConfig{}, err
	}
	b, err := parsePosition(dr)
	if err != nil {
		return game.ClusterConfig{}, err
	}
	cfg := game.ClusterConfig{UpperLeft: a, DownRight: b, Seed: uint8(seed)}
	return cfg, cfg.Validate()
}

func hitsString(cells []game.HitType) string {
	parts := make([]string, len(cells))
	for i, h := range cells {
		parts[i] = h.String()
	}
	return strings.Join(parts, " ")
}

func shotsString(shots []game.Position, hits []game.HitType) string {
	parts := make([]string, len(shots))
	for i := range shots {
		parts[i] = fmt.Sprintf("%s %s", shots[i], hits[i])
	}
	return strings.Join(parts, ", ")
}

func renderBoard(st game.GameState) {
	b, err := st.Board()
	if err != nil {
		return
	}
	data := pterm.TableData{{" ", "0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}}
	for r := 0; r < game.Size; r++ {
		row := []string{fmt.Sprint(r)}
		for c := 0; c < game.Size; c++ {
			switch {
			case b.Cells[r][c] == 0:
				row = append(row, pterm.Gray("."))
			case st.Hits[r][c]:
				row = append(row, pterm.LightRed("x"))
			default:
				row = append(row, pterm.LightCyan(fmt.Sprint(b.Cells[r][c])))
			}
		}
		data = append(data, row)
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
