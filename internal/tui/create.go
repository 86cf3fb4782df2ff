package tui

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/lxdm/internal/domain"
	"nathanbeddoewebdev/lxdm/internal/util"

	"github.com/charmbracelet/huh"
)

// DefaultProfile is offered when the caller does not name a profile.
const DefaultProfile = "default"

// CreateContainerForm collects the fields needed to create a container.
// Values already set on prefill are used as defaults.
func CreateContainerForm(prefill domain.Server) (*domain.Server, error) {
	accessible := Accessible()

	name := prefill.Name
	image := prefill.ImageID
	profile := prefill.FlavorID
	if profile == "" {
		profile = DefaultProfile
	}
	ephemeral := prefill.Ephemeral()

	nameInput := huh.NewInput().
		Title("Container name").
		Description("Letters, digits and hyphens; must start with a letter.").
		Value(&name).
		Validate(util.ValidateContainerName)

	imageInput := huh.NewInput().
		Title("Image alias").
		Placeholder("ubuntu/24.04").
		Value(&image).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("image alias is required")
			}
			return nil
		})

	profileInput := huh.NewInput().
		Title("Profile").
		Value(&profile)

	ephemeralField := huh.NewConfirm().
		Title("Ephemeral?").
		Description("Ephemeral containers are deleted when stopped.").
		Value(&ephemeral)

	if err := runForm(accessible,
		huh.NewGroup(nameInput, imageInput, profileInput, ephemeralField),
	); err != nil {
		return nil, err
	}

	server := buildCreateServer(prefill, name, image, profile, ephemeral)

	confirm := true
	if err := runForm(accessible, huh.NewGroup(
		huh.NewNote().
			Title("Review").
			Description(buildCreateSummary(server)),
		huh.NewConfirm().
			Title("Create this container?").
			Affirmative("Create").
			Negative("Cancel").
			Value(&confirm),
	)); err != nil {
		return nil, err
	}
	if !confirm {
		return nil, ErrAborted
	}

	return &server, nil
}

// buildCreateServer assembles an unpersisted server from form values.
func buildCreateServer(prefill domain.Server, name, image, profile string, ephemeral bool) domain.Server {
	server := prefill
	server.ID = ""
	server.Name = strings.TrimSpace(name)
	server.ImageID = strings.TrimSpace(image)
	server.FlavorID = strings.TrimSpace(profile)
	server.State = domain.StatePending

	custom := make(map[string]any, len(prefill.Custom)+1)
	for k, v := range prefill.Custom {
		custom[k] = v
	}
	custom["ephemeral"] = ephemeral
	server.Custom = custom

	return server
}

func buildCreateSummary(s domain.Server) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Name: %s\n", s.Name)
	fmt.Fprintf(&b, "Image: %s\n", s.ImageID)
	if s.FlavorID != "" {
		fmt.Fprintf(&b, "Profile: %s\n", s.FlavorID)
	} else {
		b.WriteString("Profile: (none)\n")
	}
	if s.Ephemeral() {
		b.WriteString("Ephemeral: yes\n")
	} else {
		b.WriteString("Ephemeral: no\n")
	}
	if s.UserData != "" {
		fmt.Fprintf(&b, "User data: %d bytes\n", len(s.UserData))
	}

	return strings.TrimSpace(b.String())
}
