package commands

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"

	"github.com/hay-kot/stamp/internal/core"
)

var tagShortcutRe = regexp.MustCompile(`^[+!][\w.-]+$`)

// expandTagShortcuts pulls +tag and !tag tokens out of input and returns the
// remaining expression along with the expressions the shortcuts expand to.
func expandTagShortcuts(input string) (string, []string) {
	var (
		rest     []string
		tagExprs []string
	)

	for _, token := range strings.Fields(input) {
		if !tagShortcutRe.MatchString(token) {
			rest = append(rest, token)
			continue
		}

		tag := token[1:]
		if token[0] == '+' {
			tagExprs = append(tagExprs, fmt.Sprintf("%q in tags", tag))
		} else {
			tagExprs = append(tagExprs, fmt.Sprintf("not (%q in tags)", tag))
		}
	}

	return strings.Join(rest, " "), tagExprs
}

// compileExpr compiles a selection expression once for reuse. Tag shortcuts
// are and-ed with the rest of the expression.
func compileExpr(code string) (*vm.Program, error) {
	rest, parts := expandTagShortcuts(code)
	if rest != "" {
		parts = append(parts, rest)
	}

	if len(parts) == 0 {
		code = "true" // default: match everything
	} else {
		code = "(" + strings.Join(parts, ") && (") + ")"
	}

	return expr.Compile(code, expr.AsBool())
}

// evalCompiledExpr evaluates a pre-compiled expression with given context
func evalCompiledExpr(program *vm.Program, env map[string]any) (bool, error) {
	output, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to boolean, got %T", output)
	}

	return result, nil
}

func jobEnv(index int, job core.Job) map[string]any {
	tags := job.Tags
	if tags == nil {
		tags = []string{}
	}

	return map[string]any{
		"index":    index,
		"name":     job.DisplayName(),
		"template": job.Template,
		"dest":     job.Dest,
		"tags":     tags,
		"locals":   job.Locals,
	}
}

// SelectJobs returns the jobs the expression evaluates to true for, in
// their original order.
func SelectJobs(jobs []core.Job, code string) ([]core.Job, error) {
	program, err := compileExpr(code)
	if err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}

	selected := make([]core.Job, 0, len(jobs))
	for i, job := range jobs {
		ok, err := evalCompiledExpr(program, jobEnv(i, job))
		if err != nil {
			return nil, fmt.Errorf("expression evaluation failed for %s: %w", job.DisplayName(), err)
		}

		if !ok {
			log.Debug().Str("job", job.DisplayName()).Strs("tags", job.Tags).Msg("filtered")
			continue
		}

		selected = append(selected, job)
	}

	return selected, nil
}

// PickJobs lets the user choose jobs from an interactive multi-select form.
func PickJobs(jobs []core.Job) ([]core.Job, error) {
	options := make([]huh.Option[int], 0, len(jobs))
	for i, job := range jobs {
		label := job.DisplayName()
		if len(job.Tags) > 0 {
			label = fmt.Sprintf("%s (%s)", label, strings.Join(job.Tags, ", "))
		}
		options = append(options, huh.NewOption(label, i))
	}

	var picked []int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[int]().
				Title("Select files to generate").
				Options(options...).
				Value(&picked),
		),
	)

	if err := form.Run(); err != nil {
		return nil, err
	}

	slices.Sort(picked)
	selected := make([]core.Job, 0, len(picked))
	for _, i := range picked {
		selected = append(selected, jobs[i])
	}

	return selected, nil
}
