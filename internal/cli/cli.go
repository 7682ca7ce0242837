// Package cli implements the line-oriented terminal front-end.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hailam/chessrules/internal/board"
	"github.com/hailam/chessrules/internal/game"
	"github.com/hailam/chessrules/internal/session"
	"github.com/hailam/chessrules/internal/storage"
)

// maxPerftDepth keeps an interactive perft from running for minutes.
const maxPerftDepth = 6

// LogView exposes the action log to the "log" command.
type LogView interface {
	Messages() []string
}

// Library lists and removes saved games for the "games" and "delete"
// commands.
type Library interface {
	ListGames() ([]storage.SavedGame, error)
	DeleteGame(name string) error
}

// CLI reads commands and drives one session.
type CLI struct {
	sess   *session.Session
	out    io.Writer
	log    LogView
	games  Library
	logger *zap.Logger
}

// Option configures a CLI.
type Option func(*CLI)

// WithOutput sets where replies are written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(c *CLI) {
		c.out = w
	}
}

// WithLog enables the "log" command.
func WithLog(l LogView) Option {
	return func(c *CLI) {
		c.log = l
	}
}

// WithLibrary enables the "games" and "delete" commands.
func WithLibrary(g Library) Option {
	return func(c *CLI) {
		c.games = g
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *CLI) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a command loop for sess.
func New(sess *session.Session, opts ...Option) *CLI {
	c := &CLI{
		sess:   sess,
		out:    os.Stdout,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run reads commands from r until "exit" or end of input.
func (c *CLI) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	c.prompt()

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			c.prompt()
			continue
		}
		if !c.Execute(line) {
			return nil
		}
		c.prompt()
	}
	return scanner.Err()
}

func (c *CLI) prompt() {
	fmt.Fprintf(c.out, "%s> ", c.sess.Turn())
}

// Execute runs one command line and reports whether the loop should go on.
func (c *CLI) Execute(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]
	c.logger.Debug("command", zap.String("cmd", cmd), zap.Strings("args", args))

	switch cmd {
	case "move", "m":
		c.handleMove(args)
	case "find":
		c.handleFind(args)
	case "promote":
		c.handlePromote(args)
	case "undo":
		c.handleUndo()
	case "redo":
		c.handleRedo()
	case "learn":
		c.handleLearn(args)
	case "new":
		c.handleNew(args)
	case "export":
		c.handleExport(args)
	case "import":
		c.handleImport(args)
	case "save":
		c.handleSave(args)
	case "load":
		c.handleLoad(args)
	case "games":
		c.handleGames()
	case "delete":
		c.handleDelete(args)
	case "show":
		c.handleShow(args)
	case "fen":
		fmt.Fprintln(c.out, c.sess.Snapshot().FEN())
	case "board", "d":
		c.handleBoard()
	case "status":
		c.handleStatus()
	case "log":
		c.handleLog()
	case "perft":
		c.handlePerft(args)
	case "help", "?":
		c.handleHelp()
	case "exit", "quit":
		fmt.Fprintln(c.out, "Bye.")
		return false
	default:
		c.errorf("unknown command %q, type help", cmd)
	}
	return true
}

func (c *CLI) errorf(format string, args ...any) {
	fmt.Fprintf(c.out, "Error: "+format+"\n", args...)
}

func (c *CLI) usage(u string) {
	fmt.Fprintf(c.out, "Usage: %s\n", u)
}

// parseSquare accepts squares in either case.
func parseSquare(s string) (board.Square, error) {
	return board.ParseSquare(strings.ToLower(s))
}

func joinSquares(sqs []board.Square) string {
	names := make([]string, len(sqs))
	for i, sq := range sqs {
		names[i] = sq.String()
	}
	return strings.Join(names, " ")
}

// handleMove selects a piece and lists its moves, or plays a move.
//   - move e2
//   - move e2 e4
//   - move e7 e8 q
//   - move Nf3, move e2e4
func (c *CLI) handleMove(args []string) {
	switch len(args) {
	case 1:
		sq, err := parseSquare(args[0])
		if err != nil {
			c.playNotation(args[0])
			return
		}
		p, ok := c.sess.PieceAt(sq)
		if !ok {
			c.sess.ClearSelection()
			fmt.Fprintf(c.out, "No piece at %s\n", sq)
			return
		}
		moves := c.sess.SelectPiece(sq)
		if len(moves) == 0 {
			fmt.Fprintf(c.out, "%s %s has no legal moves\n", p.Color, p.Type)
			return
		}
		fmt.Fprintf(c.out, "%s %s at %s can move to: %s\n", p.Color, p.Type, sq, joinSquares(moves))

	case 2, 3:
		from, err := parseSquare(args[0])
		if err != nil {
			c.errorf("%v", err)
			return
		}
		to, err := parseSquare(args[1])
		if err != nil {
			c.errorf("%v", err)
			return
		}

		var (
			mv  game.Move
			res game.MoveResult
		)
		if len(args) == 3 {
			kind, ok := board.ParsePieceType(args[2])
			if !ok {
				c.errorf("unknown piece %q", args[2])
				return
			}
			mv, res = c.sess.PlayPromote(from, to, kind)
		} else {
			mv, res = c.sess.PlayMove(from, to)
		}
		if !res.Applied() {
			fmt.Fprintln(c.out, res.Message())
			return
		}
		c.reportMove(mv, res)

	default:
		c.usage("move <square> | move <from> <to> [promotion]")
	}
}

// playNotation plays a move written in coordinate form (e2e4, e7e8q) or
// in SAN (Nf3, exd5, O-O).
func (c *CLI) playNotation(text string) {
	snap := c.sess.Snapshot()
	b := snap.Board()
	m, err := board.ParseMove(strings.ToLower(text), b)
	if err != nil {
		if m, err = b.ParseSAN(text, snap.Turn()); err != nil {
			c.errorf("%v", err)
			return
		}
	}

	var (
		mv  game.Move
		res game.MoveResult
	)
	if m.IsPromotion() {
		mv, res = c.sess.PlayPromote(m.From, m.To, m.Promotion)
	} else {
		mv, res = c.sess.PlayMove(m.From, m.To)
	}
	if !res.Applied() {
		fmt.Fprintln(c.out, res.Message())
		return
	}
	c.reportMove(mv, res)
}

func (c *CLI) reportMove(mv game.Move, res game.MoveResult) {
	fmt.Fprintf(c.out, "%s: %s\n", mv.Player, mv.SAN)
	if res != game.Success {
		fmt.Fprintln(c.out, res.Message())
	}
	if mv.PromotionPending {
		fmt.Fprintf(c.out, "Pawn on %s awaits promotion: promote %s <queen|rook|bishop|knight>\n", mv.To, mv.To)
	}
	switch {
	case mv.Checkmate:
		fmt.Fprintf(c.out, "Checkmate! %s wins.\n", mv.Player)
	case mv.Stalemate:
		fmt.Fprintln(c.out, "Stalemate.")
	case mv.Check:
		fmt.Fprintln(c.out, "Check!")
	}
}

func (c *CLI) handleFind(args []string) {
	if len(args) != 1 {
		c.usage("find <piece id>, e.g. find Pe2")
		return
	}
	p, ok := c.sess.FindPiece(args[0])
	if !ok {
		fmt.Fprintf(c.out, "Piece %s not found\n", args[0])
		return
	}
	fmt.Fprintf(c.out, "%s %s %s is at %s\n", p.ID, p.Color, p.Type, p.Square)
}

func (c *CLI) handlePromote(args []string) {
	if len(args) != 2 {
		c.usage("promote <square> <queen|rook|bishop|knight>")
		return
	}
	sq, err := parseSquare(args[0])
	if err != nil {
		c.errorf("%v", err)
		return
	}
	kind, _ := board.ParsePieceType(args[1])
	if !c.sess.PromotePawn(sq, kind) {
		fmt.Fprintf(c.out, "No pawn to promote on %s\n", sq)
		return
	}
	p, _ := c.sess.PieceAt(sq)
	fmt.Fprintf(c.out, "Promoted to %s on %s\n", p.Type, sq)
	c.reportTerminal()
}

func (c *CLI) reportTerminal() {
	if snap := c.sess.Snapshot(); snap.GameOver() {
		fmt.Fprintln(c.out, snap.Result())
	}
}

func (c *CLI) handleUndo() {
	if !c.sess.LearningMode() {
		fmt.Fprintln(c.out, "Undo is only available in learning mode (learn on)")
		return
	}
	if !c.sess.Undo() {
		fmt.Fprintln(c.out, "Nothing to undo")
		return
	}
	fmt.Fprintf(c.out, "Undone, %s to move\n", c.sess.Turn())
}

func (c *CLI) handleRedo() {
	if !c.sess.LearningMode() {
		fmt.Fprintln(c.out, "Redo is only available in learning mode (learn on)")
		return
	}
	if !c.sess.Redo() {
		fmt.Fprintln(c.out, "Nothing to redo")
		return
	}
	fmt.Fprintf(c.out, "Redone, %s to move\n", c.sess.Turn())
}

func (c *CLI) handleLearn(args []string) {
	if len(args) != 1 {
		c.usage("learn on|off")
		return
	}
	on, err := parseOnOff(args[0])
	if err != nil {
		c.errorf("%v", err)
		return
	}
	c.sess.SetLearningMode(on)
	if on {
		fmt.Fprintln(c.out, "Learning mode on")
	} else {
		fmt.Fprintln(c.out, "Learning mode off")
	}
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func (c *CLI) handleNew(args []string) {
	var white, black string
	if len(args) > 0 {
		white = args[0]
	}
	if len(args) > 1 {
		black = args[1]
	}
	c.sess.NewGame(white, black)
	fmt.Fprintf(c.out, "New game: %s (White) vs %s (Black)\n", c.sess.WhiteName(), c.sess.BlackName())
}

func (c *CLI) handleExport(args []string) {
	if len(args) != 1 {
		c.usage("export <file>")
		return
	}
	f, err := os.Create(args[0])
	if err != nil {
		c.errorf("%v", err)
		return
	}
	if err := c.sess.ExportTo(f); err != nil {
		f.Close()
		c.errorf("%v", err)
		return
	}
	if err := f.Close(); err != nil {
		c.errorf("%v", err)
		return
	}
	fmt.Fprintf(c.out, "Exported to %s\n", args[0])
}

func (c *CLI) handleImport(args []string) {
	if len(args) != 1 {
		c.usage("import <file>")
		return
	}
	f, err := os.Open(args[0])
	if err != nil {
		c.errorf("%v", err)
		return
	}
	defer f.Close()
	if err := c.sess.ImportFrom(f, "", ""); err != nil {
		c.errorf("%v", err)
		return
	}
	fmt.Fprintf(c.out, "Imported %s, %s to move\n", args[0], c.sess.Turn())
	c.reportTerminal()
}

func (c *CLI) handleSave(args []string) {
	if len(args) == 0 {
		c.usage("save <name>")
		return
	}
	rec, err := c.sess.Save(strings.Join(args, " "))
	if err != nil {
		c.errorf("%v", err)
		return
	}
	fmt.Fprintf(c.out, "Saved %q (%d moves)\n", rec.Name, rec.Ply)
}

func (c *CLI) handleLoad(args []string) {
	if len(args) == 0 {
		c.usage("load <name>")
		return
	}
	name := strings.Join(args, " ")
	if err := c.sess.Open(name); err != nil {
		if errors.Is(err, session.ErrGameNotFound) {
			fmt.Fprintf(c.out, "No saved game named %q\n", name)
			return
		}
		c.errorf("%v", err)
		return
	}
	fmt.Fprintf(c.out, "Loaded %q, %s to move\n", name, c.sess.Turn())
}

func (c *CLI) handleGames() {
	if c.games == nil {
		c.errorf("%v", session.ErrNoStorage)
		return
	}
	list, err := c.games.ListGames()
	if err != nil {
		c.errorf("%v", err)
		return
	}
	if len(list) == 0 {
		fmt.Fprintln(c.out, "No saved games")
		return
	}
	for _, g := range list {
		fmt.Fprintf(c.out, "%-20s %s vs %s, %d moves, %s\n",
			g.Name, g.WhiteName, g.BlackName, g.Ply, g.SavedAt.Local().Format(time.DateTime))
	}
}

func (c *CLI) handleDelete(args []string) {
	if len(args) == 0 {
		c.usage("delete <name>")
		return
	}
	if c.games == nil {
		c.errorf("%v", session.ErrNoStorage)
		return
	}
	name := strings.Join(args, " ")
	if err := c.games.DeleteGame(name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(c.out, "No saved game named %q\n", name)
			return
		}
		c.errorf("%v", err)
		return
	}
	fmt.Fprintf(c.out, "Deleted %q\n", name)
}

func (c *CLI) handleShow(args []string) {
	if len(args) != 1 {
		c.usage("show on|off")
		return
	}
	on, err := parseOnOff(args[0])
	if err != nil {
		c.errorf("%v", err)
		return
	}
	c.sess.SetShowMovesMode(on)
	fmt.Fprintf(c.out, "Show moves %s\n", onOff(on))
}

// handleBoard prints the board. In show-moves mode the destinations of
// the selected piece are marked with '*', or 'x' for captures.
func (c *CLI) handleBoard() {
	snap := c.sess.Snapshot()
	marks := make(map[board.Square]bool)
	if c.sess.ShowMovesMode() {
		if _, moves := c.sess.Selection(); len(moves) > 0 {
			for _, sq := range moves {
				marks[sq] = true
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("\n")
	for rank := board.Size - 1; rank >= 0; rank-- {
		fmt.Fprintf(&sb, "%d  ", rank+1)
		for file := 0; file < board.Size; file++ {
			sq := board.NewSquare(file, rank)
			p, ok := snap.PieceAt(sq)
			switch {
			case marks[sq] && ok:
				sb.WriteByte('x')
			case marks[sq]:
				sb.WriteByte('*')
			case ok:
				sb.WriteByte(p.Letter())
			default:
				sb.WriteByte('.')
			}
			sb.WriteByte(' ')
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n   a b c d e f g h\n\n")
	fmt.Fprint(c.out, sb.String())
	fmt.Fprintf(c.out, "%s to move (%s)\n", snap.Turn(), snap.CurrentPlayerName())
}

func (c *CLI) handleStatus() {
	snap := c.sess.Snapshot()
	fmt.Fprintf(c.out, "White: %s\nBlack: %s\n", snap.WhiteName(), snap.BlackName())
	fmt.Fprintf(c.out, "Moves played: %d\n", snap.Ply())
	if snap.GameOver() {
		fmt.Fprintln(c.out, snap.Result())
	} else {
		fmt.Fprintf(c.out, "%s (%s) to move\n", snap.Turn(), snap.CurrentPlayerName())
		if snap.IsCheck(snap.Turn()) {
			fmt.Fprintf(c.out, "In check from %s\n", joinSquares(checkers(snap)))
		}
	}
	if sq, ok := snap.PendingPromotion(); ok {
		fmt.Fprintf(c.out, "Pawn on %s awaits promotion\n", sq)
	}
	fmt.Fprintf(c.out, "Learning mode: %s\n", onOff(c.sess.LearningMode()))

	if stats, err := c.sess.Stats(); err == nil {
		fmt.Fprintf(c.out, "Finished games: %d (white %d, black %d, drawn %d)\n",
			stats.GamesPlayed, stats.WhiteWins, stats.BlackWins, stats.Draws)
		if stats.GamesPlayed > 0 {
			fmt.Fprintf(c.out, "Win rate: white %.0f%%, black %.0f%%\n",
				stats.WinRate(board.White), stats.WinRate(board.Black))
		}
	}
}

// checkers returns the squares of the pieces giving check to the side to
// move.
func checkers(snap *game.State) []board.Square {
	b := snap.Board()
	ksq, ok := b.FindKing(snap.Turn())
	if !ok {
		return nil
	}
	return b.Attackers(ksq, snap.Turn().Other())
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (c *CLI) handleLog() {
	if c.log == nil {
		fmt.Fprintln(c.out, "No log attached")
		return
	}
	for _, m := range c.log.Messages() {
		fmt.Fprintln(c.out, m)
	}
}

// handlePerft counts leaf nodes from the current position.
func (c *CLI) handlePerft(args []string) {
	depth := 3
	if len(args) > 0 {
		d, err := strconv.Atoi(args[0])
		if err != nil || d < 1 || d > maxPerftDepth {
			c.errorf("depth must be between 1 and %d", maxPerftDepth)
			return
		}
		depth = d
	}

	snap := c.sess.Snapshot()
	start := time.Now()
	nodes := board.Perft(snap.Board(), snap.Turn(), depth)
	elapsed := time.Since(start)

	fmt.Fprintf(c.out, "Nodes: %d\n", nodes)
	fmt.Fprintf(c.out, "Time: %v\n", elapsed)
	if elapsed > 0 {
		fmt.Fprintf(c.out, "NPS: %.0f\n", float64(nodes)/elapsed.Seconds())
	}
}

func (c *CLI) handleHelp() {
	fmt.Fprint(c.out, `Commands:
  move <square>                 select a piece and list its legal moves
  move <from> <to> [piece]      play a move, optionally promoting
  move <san|uci>                play a move such as Nf3, O-O or e7e8q
  find <id>                     locate a piece by id, e.g. Pe2
  promote <square> <piece>      promote a waiting pawn
  undo | redo                   step through history (learning mode)
  learn on|off                  toggle learning mode
  new [white] [black]           start a new game
  export <file> | import <file> write or read the text format
  save <name> | load <name>     store or restore a whole game
  games | delete <name>         list or remove saved games
  show on|off                   mark the selected piece's moves on the board
  fen | board | status | log    inspect the game
  perft <depth>                 count move-tree leaves
  help | exit
`)
}
