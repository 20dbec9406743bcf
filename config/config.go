package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/julienfausty/Fe2O3/assembly"
	"github.com/julienfausty/Fe2O3/constraints"
	"github.com/julienfausty/Fe2O3/partitions"
	"github.com/julienfausty/Fe2O3/solver"
	"gopkg.in/gcfg.v1"
)

// ErrInvalidConfig is returned for unreadable files and out of range values
var ErrInvalidConfig = errors.New("config: invalid configuration")

// SolveConfig is the [solve] section
type SolveConfig struct {
	ConstraintStrategy string
	PenaltyMagnitude   float64

	SolverBackend      string
	DirectMethod       string
	IterativeMethod    string
	IterativeTolerance float64
	MaxIterations      int
	Restart            int
	TimeBudget         float64 // Seconds, 0 disables
	Preconditioner     string
}

// AssemblyConfig is the [assembly] section
type AssemblyConfig struct {
	Workers   int
	Strategy  string
	Coloring  string
	ChunkSize int
	Chunking  string
}

// Config is the full analysis configuration
type Config struct {
	Solve    SolveConfig
	Assembly AssemblyConfig
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Solve: SolveConfig{
			ConstraintStrategy: "elimination",
			PenaltyMagnitude:   constraints.DefaultPenalty,
			SolverBackend:      "direct",
			DirectMethod:       "skyline",
			IterativeMethod:    "cg",
			IterativeTolerance: solver.DefaultTolerance,
			MaxIterations:      solver.DefaultMaxIterations,
			Restart:            solver.DefaultRestart,
			Preconditioner:     "jacobi",
		},
		Assembly: AssemblyConfig{
			Strategy:  "coloring",
			Coloring:  "dsatur",
			ChunkSize: assembly.DefaultChunkSize,
			Chunking:  "block",
		},
	}
}

// ReadFile loads an INI file over the defaults
func ReadFile(path string) (*Config, error) {
	c := Default()
	if err := gcfg.ReadFileInto(c, path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if err := c.CheckInit(); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadString loads INI text over the defaults
func ReadString(s string) (*Config, error) {
	c := Default()
	if err := gcfg.ReadStringInto(c, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.CheckInit(); err != nil {
		return nil, err
	}
	return c, nil
}

// CheckInit fills zero values with defaults and rejects unknown names and
// out of range numbers
func (c *Config) CheckInit() error {
	def := Default()
	s := &c.Solve
	if s.ConstraintStrategy == "" {
		s.ConstraintStrategy = def.Solve.ConstraintStrategy
	}
	if s.SolverBackend == "" {
		s.SolverBackend = def.Solve.SolverBackend
	}
	if s.DirectMethod == "" {
		s.DirectMethod = def.Solve.DirectMethod
	}
	if s.IterativeMethod == "" {
		s.IterativeMethod = def.Solve.IterativeMethod
	}
	if s.Preconditioner == "" {
		s.Preconditioner = def.Solve.Preconditioner
	}
	if s.PenaltyMagnitude == 0 {
		s.PenaltyMagnitude = def.Solve.PenaltyMagnitude
	} else if s.PenaltyMagnitude < 0 {
		return invalid("negative PenaltyMagnitude %g", s.PenaltyMagnitude)
	}
	if s.IterativeTolerance == 0 {
		s.IterativeTolerance = def.Solve.IterativeTolerance
	} else if s.IterativeTolerance < 0 || s.IterativeTolerance >= 1 {
		return invalid("IterativeTolerance must be in (0,1), got %g", s.IterativeTolerance)
	}
	if s.MaxIterations == 0 {
		s.MaxIterations = def.Solve.MaxIterations
	} else if s.MaxIterations < 0 {
		return invalid("negative MaxIterations %d", s.MaxIterations)
	}
	if s.Restart == 0 {
		s.Restart = def.Solve.Restart
	} else if s.Restart < 0 {
		return invalid("negative Restart %d", s.Restart)
	}
	if s.TimeBudget < 0 {
		return invalid("negative TimeBudget %g", s.TimeBudget)
	}

	a := &c.Assembly
	if a.Strategy == "" {
		a.Strategy = def.Assembly.Strategy
	}
	if a.Coloring == "" {
		a.Coloring = def.Assembly.Coloring
	}
	if a.Chunking == "" {
		a.Chunking = def.Assembly.Chunking
	}
	if a.ChunkSize == 0 {
		a.ChunkSize = def.Assembly.ChunkSize
	} else if a.ChunkSize < 0 {
		return invalid("negative ChunkSize %d", a.ChunkSize)
	}
	if a.Workers < 0 {
		return invalid("negative Workers %d", a.Workers)
	}

	// every name must parse
	if _, err := c.ConstraintOptions(); err != nil {
		return err
	}
	if _, err := c.SolverOptions(); err != nil {
		return err
	}
	if _, err := c.Assembler(); err != nil {
		return err
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// ConstraintOptions converts the [solve] constraint settings
func (c *Config) ConstraintOptions() (constraints.Options, error) {
	strategy, err := constraints.ParseStrategy(c.Solve.ConstraintStrategy)
	if err != nil {
		return constraints.Options{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return constraints.Options{Strategy: strategy, Penalty: c.Solve.PenaltyMagnitude}, nil
}

// SolverOptions converts the [solve] backend settings
func (c *Config) SolverOptions() (solver.Options, error) {
	s := c.Solve
	var (
		o   solver.Options
		err error
	)
	if o.Kind, err = solver.ParseKind(s.SolverBackend); err != nil {
		return o, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if o.Direct, err = solver.ParseDirect(s.DirectMethod); err != nil {
		return o, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if o.Iterative, err = solver.ParseIterative(s.IterativeMethod); err != nil {
		return o, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if o.Preconditioner, err = solver.ParsePreconditioner(s.Preconditioner); err != nil {
		return o, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	o.Tolerance = s.IterativeTolerance
	o.MaxIterations = s.MaxIterations
	o.Restart = s.Restart
	o.TimeBudget = time.Duration(s.TimeBudget * float64(time.Second))
	return o, nil
}

// Assembler converts the [assembly] section
func (c *Config) Assembler() (*assembly.Assembler, error) {
	strategy, err := assembly.ParseStrategy(c.Assembly.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	coloring, err := partitions.ParseColoring(c.Assembly.Coloring)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	chunking, err := partitions.ParseChunking(c.Assembly.Chunking)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &assembly.Assembler{
		Workers:   c.Assembly.Workers,
		Strategy:  strategy,
		Coloring:  coloring,
		ChunkSize: c.Assembly.ChunkSize,
		Chunking:  chunking,
	}, nil
}
