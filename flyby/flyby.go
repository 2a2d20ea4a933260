// Package flyby moves a virtual camera on an orbit in front of the depth camera.
package flyby

import (
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/senses/logging"
	"go.viam.com/senses/spatialmath"
)

// State is where a Controller is in its lifecycle.
type State int

// The controller starts Idle, flies from the first Advance and stays Stopped once stopped.
const (
	StateIdle State = iota
	StateFlying
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFlying:
		return "flying"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config describes the orbit. The camera sweeps sideways at Distance meters along z while
// looking at Target.
type Config struct {
	Radius float64 `json:"radius_m"`
	// Distance is the z coordinate of the orbit, negative is behind the depth camera.
	Distance float64 `json:"distance_m"`
	Height   float64 `json:"height_m"`
	// AngularSpeed is the sweep rate in radians per second once the ramp is over.
	AngularSpeed float64 `json:"angular_speed"`
	// Ramp is how long the sweep takes to reach full speed from rest.
	Ramp   time.Duration `json:"ramp"`
	Target []float64     `json:"target_m,omitempty"`
	Up     []float64     `json:"up,omitempty"`
}

// DefaultConfig returns the default orbit: 2m sideways, 2m behind the sensor, 0.15 rad/s.
func DefaultConfig() Config {
	return Config{
		Radius:       2,
		Distance:     -2,
		AngularSpeed: 0.15,
		Ramp:         2 * time.Second,
		Target:       []float64{0, 0, 0},
		Up:           []float64{0, -1, 0},
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Radius < 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("radius_m cannot be negative, got %v", cfg.Radius))
	}
	if cfg.Ramp < 0 {
		return goutils.NewConfigValidationError(path, errors.New("ramp cannot be negative"))
	}
	if cfg.Target != nil && len(cfg.Target) != 3 {
		return goutils.NewConfigValidationError(path, errors.Errorf("target_m must have 3 elements, got %d", len(cfg.Target)))
	}
	if cfg.Up != nil {
		if len(cfg.Up) != 3 {
			return goutils.NewConfigValidationError(path, errors.Errorf("up must have 3 elements, got %d", len(cfg.Up)))
		}
		if toVector(cfg.Up).Norm() == 0 {
			return goutils.NewConfigValidationError(path, errors.New("up cannot be the zero vector"))
		}
	}
	return nil
}

func toVector(v []float64) r3.Vector {
	if len(v) != 3 {
		return r3.Vector{}
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// Pose is the virtual camera's placement at some elapsed time.
type Pose struct {
	spatialmath.Pose
	// Velocity is the camera's linear velocity in meters per second.
	Velocity r3.Vector
	Elapsed  time.Duration
}

// Trajectory is the orbit as a pure function of elapsed time.
type Trajectory struct {
	radius, distance, height float64
	speed                    float64
	ramp                     float64
	target, up               r3.Vector
}

// NewTrajectory returns the orbit described by cfg.
func NewTrajectory(cfg Config) (*Trajectory, error) {
	if err := cfg.Validate("flyby"); err != nil {
		return nil, err
	}
	tr := &Trajectory{
		radius:   cfg.Radius,
		distance: cfg.Distance,
		height:   cfg.Height,
		speed:    cfg.AngularSpeed,
		ramp:     cfg.Ramp.Seconds(),
		target:   toVector(cfg.Target),
		up:       r3.Vector{Y: -1},
	}
	if cfg.Up != nil {
		tr.up = toVector(cfg.Up)
	}
	return tr, nil
}

// phase returns the sweep angle and its rate at t seconds. The rate grows linearly during the
// ramp so the camera starts from rest without a jump in position.
func (tr *Trajectory) phase(t float64) (theta, rate float64) {
	if t < 0 {
		t = 0
	}
	if t < tr.ramp {
		return tr.speed * t * t / (2 * tr.ramp), tr.speed * t / tr.ramp
	}
	return tr.speed * (t - tr.ramp/2), tr.speed
}

// At returns the pose after elapsed time.
func (tr *Trajectory) At(elapsed time.Duration) Pose {
	theta, rate := tr.phase(elapsed.Seconds())
	eye := r3.Vector{
		X: tr.target.X + tr.radius*math.Sin(theta),
		Y: tr.target.Y + tr.height,
		Z: tr.target.Z + tr.distance,
	}
	return Pose{
		Pose:     spatialmath.NewLookAtPose(eye, tr.target, tr.up),
		Velocity: r3.Vector{X: tr.radius * math.Cos(theta) * rate},
		Elapsed:  elapsed,
	}
}

// Controller advances a Trajectory with the time elapsed between ticks, so the camera speed
// does not depend on the tick rate.
type Controller struct {
	trajectory *Trajectory
	logger     logging.Logger

	mu      sync.Mutex
	state   State
	elapsed time.Duration
	pose    Pose
}

// NewController returns an idle controller at the start of the orbit.
func NewController(cfg Config, logger logging.Logger) (*Controller, error) {
	tr, err := NewTrajectory(cfg)
	if err != nil {
		return nil, err
	}
	return &Controller{
		trajectory: tr,
		logger:     logger,
		pose:       tr.At(0),
	}, nil
}

// Advance moves the camera forward by dt and returns the new pose. The first call starts the
// flight. Negative steps count as zero and a stopped controller no longer moves.
func (c *Controller) Advance(dt time.Duration) Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateStopped:
		return c.pose
	case StateIdle:
		c.state = StateFlying
		c.logger.Debugw("flyby started", "pose", c.pose.String())
	case StateFlying:
	}
	if dt > 0 {
		c.elapsed += dt
	}
	c.pose = c.trajectory.At(c.elapsed)
	return c.pose
}

// Pose returns the current pose without moving.
func (c *Controller) Pose() Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pose
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stop freezes the camera. It cannot be restarted.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped {
		c.logger.Debugw("flyby stopped", "elapsed", c.elapsed)
	}
	c.state = StateStopped
}
