package nav

import (
	"context"
	"fmt"

	"github.com/banshee-data/cybot/internal/landmark"
	"github.com/banshee-data/cybot/internal/scan"
)

type action func(c *Controller, ctx context.Context) error

// manualActions maps manual-mode commands to what they do. Commands missing
// from the table are ignored.
var manualActions = map[Command]action{
	CmdForward: func(c *Controller, ctx context.Context) error {
		return c.driver.Drive(ctx, c.cfg.MaxSpeed)
	},
	CmdReverse: func(c *Controller, ctx context.Context) error {
		return c.driver.Drive(ctx, -c.cfg.MaxSpeed)
	},
	CmdLeft: func(c *Controller, ctx context.Context) error {
		return c.driver.Turn(ctx, c.cfg.Drive.TurnSpeed)
	},
	CmdRight: func(c *Controller, ctx context.Context) error {
		return c.driver.Turn(ctx, -c.cfg.Drive.TurnSpeed)
	},
	CmdStop: func(c *Controller, ctx context.Context) error {
		return c.driver.Stop(ctx)
	},
	CmdSquare: func(c *Controller, ctx context.Context) error {
		return c.driver.DriveSquare(ctx)
	},
	CmdObstacles: func(c *Controller, ctx context.Context) error {
		progress, err := c.driver.DriveObstacles(ctx, obstacleCourseCM)
		logNav("obstacle course: %.1f of %d cm", progress, obstacleCourseCM)
		return err
	},
	CmdNudgeLeft: func(c *Controller, ctx context.Context) error {
		_, err := c.driver.TurnDegrees(ctx, c.cfg.Drive.TurnSpeed, nudgeDeg)
		return err
	},
	CmdNudgeRight: func(c *Controller, ctx context.Context) error {
		_, err := c.driver.TurnDegrees(ctx, c.cfg.Drive.TurnSpeed, -nudgeDeg)
		return err
	},
	CmdScan:    (*Controller).scanReport,
	CmdWallFix: (*Controller).wallFix,
}

// manual hands the wheels to the operator until t is pressed again.
func (c *Controller) manual(ctx context.Context) error {
	c.setState(ManualOverride)
	if err := c.send(msgManual); err != nil {
		return err
	}
	for {
		key, err := c.op.RecvChar(ctx)
		if err != nil {
			return fmt.Errorf("read operator: %w", err)
		}
		cmd, _ := ParseCommand(key)
		if cmd == CmdToggle {
			// the pose must hold everything driven by hand before the next scan
			if err := c.syncPose(ctx); err != nil {
				return err
			}
			if err := c.driver.Stop(ctx); err != nil {
				logNav("stop on leaving manual: %v", err)
			}
			if err := c.syncPose(ctx); err != nil {
				return err
			}
			c.record(ctx, "command", cmd.String())
			return c.send(msgAuto)
		}
		if err := c.execute(ctx, cmd); err != nil {
			return err
		}
	}
}

// execute runs one manual command. Free motion since the last poll is picked
// up first so the pose follows the operator's driving.
func (c *Controller) execute(ctx context.Context, cmd Command) error {
	if err := c.syncPose(ctx); err != nil {
		return err
	}
	act, ok := manualActions[cmd]
	if !ok {
		return nil
	}
	c.record(ctx, "command", cmd.String())
	if err := act(c, ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		c.lastErr = err
		c.publish()
		logNav("manual %s: %v", cmd, err)
		if err := c.send(fmt.Sprintf(msgError, err)); err != nil {
			return err
		}
	}
	return c.send(msgPrompt)
}

// syncPose folds odometry since the last poll into the pose. Only a done
// context is returned; a failed poll is logged.
func (c *Controller) syncPose(ctx context.Context) error {
	if _, err := c.driver.Sync(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		logNav("sync odometry: %v", err)
	}
	return nil
}

// scanReport sweeps and prints the raw table.
func (c *Controller) scanReport(ctx context.Context) error {
	raw, _, err := c.sweep(ctx)
	if err != nil {
		return err
	}
	for _, line := range scan.TableLines(raw) {
		if err := c.send(line); err != nil {
			return err
		}
	}
	return nil
}

// wallFix records the current pose against a wall. The second fix resolves
// the corner between the two walls and starts over.
func (c *Controller) wallFix(ctx context.Context) error {
	fix := landmark.WallFix{Pose: c.pose}
	c.fixes = append(c.fixes, fix)
	c.publish()
	if err := c.send(fmt.Sprintf(msgWallFix, len(c.fixes), fix.Pose)); err != nil {
		return err
	}
	if len(c.fixes) < 2 {
		return nil
	}

	corner := landmark.IntersectWalls(c.fixes[0], c.fixes[1])
	c.fixes = c.fixes[:0]
	c.publish()
	c.record(ctx, "corner", corner.String())
	return c.send(fmt.Sprintf(msgCorner, corner))
}
