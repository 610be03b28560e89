// Package actuator turns conversation events into physical cues: a status
// LED and a small gesture servo. The hardware is reached through narrow
// writer interfaces so the package tests without GPIO.
package actuator

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/kestrelvoice/aria/pkg/assistant"
)

// PinWriter sets a digital output pin.
type PinWriter interface {
	Set(high bool) error
}

// PWMWriter sets a PWM duty cycle in [0, 1].
type PWMWriter interface {
	SetDuty(duty float64) error
}

// ServoConfig maps an angle range onto PWM duty.
type ServoConfig struct {
	// MinDuty is the duty cycle at MinAngle. Default: 0.025 (0.5ms of a
	// 20ms period).
	MinDuty float64 `yaml:"min_duty" json:"min_duty"`

	// MaxDuty is the duty cycle at MaxAngle. Default: 0.125 (2.5ms).
	MaxDuty float64 `yaml:"max_duty" json:"max_duty"`

	// MinAngle and MaxAngle bound the servo travel in degrees.
	MinAngle float64 `yaml:"min_angle" json:"min_angle"`
	MaxAngle float64 `yaml:"max_angle" json:"max_angle"`
}

// DefaultServoConfig returns the usual hobby-servo mapping.
func DefaultServoConfig() ServoConfig {
	return ServoConfig{
		MinDuty:  0.025,
		MaxDuty:  0.125,
		MinAngle: 0,
		MaxAngle: 180,
	}
}

// Validate checks the servo configuration.
func (c *ServoConfig) Validate() error {
	if c.MaxAngle <= c.MinAngle {
		return fmt.Errorf("actuator: max_angle %v must exceed min_angle %v", c.MaxAngle, c.MinAngle)
	}
	if c.MaxDuty <= c.MinDuty || c.MinDuty < 0 || c.MaxDuty > 1 {
		return fmt.Errorf("actuator: duty range [%v, %v] invalid", c.MinDuty, c.MaxDuty)
	}
	return nil
}

// Duty converts an angle to a duty cycle, clamping to the travel range.
func (c *ServoConfig) Duty(angle float64) float64 {
	if angle < c.MinAngle {
		angle = c.MinAngle
	}
	if angle > c.MaxAngle {
		angle = c.MaxAngle
	}
	span := c.MaxAngle - c.MinAngle
	return c.MinDuty + (angle-c.MinAngle)/span*(c.MaxDuty-c.MinDuty)
}

// Servo drives a gesture servo through a PWMWriter.
type Servo struct {
	cfg ServoConfig
	pwm PWMWriter

	mu    sync.Mutex
	angle float64
}

// NewServo creates a servo driver.
func NewServo(cfg ServoConfig, pwm PWMWriter) (*Servo, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pwm == nil {
		return nil, fmt.Errorf("actuator: pwm writer is required")
	}
	return &Servo{cfg: cfg, pwm: pwm}, nil
}

// Move sets the servo angle.
func (s *Servo) Move(angle float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pwm.SetDuty(s.cfg.Duty(angle)); err != nil {
		return fmt.Errorf("actuator: servo move failed: %w", err)
	}
	s.angle = angle
	return nil
}

// Angle returns the last commanded angle.
func (s *Servo) Angle() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle
}

// Cues implements the conversation notifier with an LED and an optional
// servo nod. Failures are logged, never propagated; a dead LED must not
// break the conversation.
type Cues struct {
	led    PinWriter
	servo  *Servo
	logger *slog.Logger
}

// NewCues creates the cue actuator. servo may be nil.
func NewCues(led PinWriter, servo *Servo, logger *slog.Logger) *Cues {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cues{
		led:    led,
		servo:  servo,
		logger: logger.With("component", "actuator"),
	}
}

// WakeAcknowledged lights the LED and nods.
func (c *Cues) WakeAcknowledged() {
	c.set(true)
	c.nod(30)
}

// ReplyStarted keeps the LED on.
func (c *Cues) ReplyStarted() {
	c.set(true)
}

// ConversationEnded turns the LED off and returns the servo to rest.
func (c *Cues) ConversationEnded() {
	c.set(false)
	c.nod(0)
}

func (c *Cues) set(high bool) {
	if c.led == nil {
		return
	}
	if err := c.led.Set(high); err != nil {
		c.logger.Warn("led write failed", "error", err)
	}
}

func (c *Cues) nod(angle float64) {
	if c.servo == nil {
		return
	}
	if err := c.servo.Move(angle); err != nil {
		c.logger.Warn("servo move failed", "error", err)
	}
}

// Ensure Cues implements the conversation notifier.
var _ assistant.Notifier = (*Cues)(nil)
