package commands

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

//go:embed templates/*
var templatesFS embed.FS

// Template placeholders replaced in file paths and contents.
const (
	projectNamePlaceholder = "{{project_name}}"
	modulePlaceholder      = "{{module}}"
	templateSuffix         = ".tmpl"
)

var projectNameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

type InitOptions struct {
	ProjectName string
	Module      string
	Template    string
}

type FileSystem interface {
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(name string, data []byte, perm os.FileMode) error
}

type osFileSystem struct{}

func (fs *osFileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (fs *osFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (fs *osFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

type InitCommand struct {
	filesystem  FileSystem
	templatesFS fs.FS
	output      Output
	// For testing: if set, skip prompting
	testOptions *InitOptions
}

func NewInitCommand() *InitCommand {
	return &InitCommand{
		filesystem:  &osFileSystem{},
		templatesFS: templatesFS,
		output:      &defaultOutput{},
	}
}

func (ic *InitCommand) Run(ctx context.Context) error {
	return ic.RunWithOptions(ctx)
}

func (ic *InitCommand) RunWithOptions(ctx context.Context, opts ...tea.ProgramOption) error {
	var options *InitOptions
	var err error

	// For testing: use provided options instead of prompting
	if ic.testOptions != nil {
		options = ic.testOptions
	} else {
		options, err = ic.promptInitOptions(opts...)
		if err != nil {
			return fmt.Errorf("failed to get init options: %w", err)
		}
	}
	if err := ic.validateProjectName(options.ProjectName); err != nil {
		return err
	}
	if options.Module == "" {
		options.Module = options.ProjectName
	}

	if err := ic.scaffold(ctx, options); err != nil {
		return fmt.Errorf("failed to scaffold project: %w", err)
	}

	ic.output.Printf("Created %s project %s\n", options.Template, options.ProjectName)
	ic.output.Printf("Next: cd %s && shapegen generate\n", options.ProjectName)
	return nil
}

func (ic *InitCommand) promptInitOptions(opts ...tea.ProgramOption) (*InitOptions, error) {
	var projectName, module, template string

	form := ic.createInitForm(&projectName, &module, &template)

	if len(opts) > 0 {
		// For testing: run with provided options
		program := tea.NewProgram(form, opts...)
		if _, err := program.Run(); err != nil {
			return nil, err
		}
	} else {
		if err := form.Run(); err != nil {
			return nil, err
		}
	}

	return &InitOptions{
		ProjectName: projectName,
		Module:      module,
		Template:    template,
	}, nil
}

func (ic *InitCommand) createInitForm(projectName, module, template *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project name").
				Description("Name of your new shapegen project").
				Value(projectName).
				Validate(ic.validateProjectName),

			huh.NewInput().
				Title("Go module").
				Description("Module path of the project; defaults to the project name").
				Value(module),

			huh.NewSelect[string]().
				Title("Template").
				Description("Choose a project template").
				Options(
					huh.NewOption("Model and endpoint rules", "storage"),
					huh.NewOption("Model only", "minimal"),
				).
				Value(template),
		),
	)
}

func (ic *InitCommand) validateProjectName(s string) error {
	if s == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if !projectNameRegex.MatchString(s) {
		return fmt.Errorf("project name %q must start with a letter and contain only lowercase letters, digits and dashes", s)
	}
	if _, err := ic.filesystem.Stat(s); err == nil {
		return fmt.Errorf("directory %s already exists", s)
	}
	return nil
}

// scaffold copies the template tree into the working directory, replacing
// placeholders in paths and contents.
func (ic *InitCommand) scaffold(ctx context.Context, options *InitOptions) error {
	root := path.Join("templates", options.Template)
	if _, err := fs.Stat(ic.templatesFS, root); err != nil {
		return fmt.Errorf("unknown template %q", options.Template)
	}

	replacer := strings.NewReplacer(
		projectNamePlaceholder, options.ProjectName,
		modulePlaceholder, options.Module,
	)

	return fs.WalkDir(ic.templatesFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == root {
			return nil
		}

		relPath := strings.TrimPrefix(p, root+"/")
		destPath := filepath.FromSlash(replacer.Replace(strings.TrimSuffix(relPath, templateSuffix)))

		if d.IsDir() {
			return ic.filesystem.MkdirAll(destPath, 0755)
		}

		data, err := fs.ReadFile(ic.templatesFS, p)
		if err != nil {
			return err
		}
		return ic.filesystem.WriteFile(destPath, []byte(replacer.Replace(string(data))), 0644)
	})
}
