package shell

import (
	"context"
	"fmt"

	"github.com/chukul/capsulectl/internal/compute"
	"github.com/chukul/capsulectl/internal/ui"
)

var progress = map[compute.Action]string{
	compute.Start:     "Starting",
	compute.Stop:      "Stopping",
	compute.Reboot:    "Rebooting",
	compute.Terminate: "Terminating",
}

func (s *Shell) computeClient(ctx context.Context) (Compute, error) {
	if s.compute == nil {
		c, err := s.newCompute(ctx, s.session)
		if err != nil {
			return nil, err
		}
		s.compute = c
	}
	return s.compute, nil
}

func (s *Shell) computeMenu(ctx context.Context) error {
	c, err := s.computeClient(ctx)
	if err != nil {
		s.fail("Could not connect to EC2", err)
		return nil
	}

	for {
		choice, err := s.menu(ctx, "COMPUTE MENU", []string{
			"Launch instance",
			"Manage instances",
			"Back to main menu",
		})
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			err = s.launch(ctx, c)
		case 2:
			err = s.manage(ctx, c)
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *Shell) launch(ctx context.Context, c Compute) error {
	name, err := s.p.ReadLine("Enter a name for your instance (blank for default): ")
	if err != nil {
		return err
	}

	for {
		inst, err := ui.Busy(ctx, s.p, "Launching instance and waiting for it to run...", func(ctx context.Context) (*compute.Instance, error) {
			return c.Launch(ctx, name)
		})
		if err == nil {
			s.success("Instance %s (%s) is running.", inst.ID, inst.Name)
			if inst.PublicIP == "" {
				s.warn("No public IP assigned. Check subnet settings or use an Elastic IP.")
			} else {
				s.p.Printf("   Public IP address: %s\n", inst.PublicIP)
				s.hint("You can now SSH into your instance.")
			}
			return nil
		}

		s.fail("Error launching instance", err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		retry, err := s.p.Confirm("Would you like to try again?")
		if err != nil {
			return err
		}
		if !retry {
			return nil
		}
	}
}

func (s *Shell) printInstances(instances []compute.Instance) {
	s.p.Title("YOUR INSTANCES")
	for i, inst := range instances {
		line := fmt.Sprintf("%d. ID: %s | State: %s | Name: %s", i+1, inst.ID, inst.State, inst.Name)
		if inst.PublicIP != "" {
			line += " | IP: " + inst.PublicIP
		}
		s.p.Println(line)
	}
}

func (s *Shell) manage(ctx context.Context, c Compute) error {
	instances, err := ui.Busy(ctx, s.p, "Fetching instances...", c.List)
	if err != nil {
		s.fail("Could not list instances", err)
		return nil
	}
	if len(instances) == 0 {
		s.p.Println("No instances found.")
		return nil
	}

	s.printInstances(instances)
	idx, err := s.p.SelectIndex("Select an instance by number", len(instances))
	if err != nil || idx == 0 {
		return err
	}
	inst := instances[idx-1]
	s.p.Printf("\nYou selected: %s (State: %s, Name: %s)\n", inst.ID, inst.State, inst.Name)

	choice, err := s.menu(ctx, "What would you like to do?", []string{
		"Start instance",
		"Stop instance",
		"Reboot instance",
		"Terminate instance",
		"Back to compute menu",
	})
	if err != nil {
		return err
	}
	if choice > len(compute.Actions) {
		return nil
	}
	action := compute.Actions[choice-1]

	if action == compute.Terminate {
		ok, err := s.p.Confirm("Are you sure you want to terminate this instance?")
		if err != nil {
			return err
		}
		if !ok {
			s.p.Println("Termination cancelled.")
			return nil
		}
	}

	updated, err := ui.Busy(ctx, s.p, fmt.Sprintf("%s instance %s...", progress[action], inst.ID), func(ctx context.Context) (*compute.Instance, error) {
		return c.Apply(ctx, inst.ID, action)
	})
	if err != nil {
		s.fail("Failed to "+string(action)+" instance", err)
		return nil
	}
	s.success("Instance %s is now %s.", updated.ID, updated.State)
	return nil
}
