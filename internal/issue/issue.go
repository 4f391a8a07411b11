// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies a catalogued issue.
type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	CommandFileNotFoundId
	UnknownCommandId
	ScriptLoadFailedId
	ScriptTooLargeId
	PluginRegistrationFailedId
	ServeFailedId
	PermissionDeniedId
)

type (
	// MarkdownMsg is the Markdown body of an issue.
	MarkdownMsg string

	// HttpLink is a documentation link appended to a rendered issue.
	HttpLink string

	// Issue is one catalogued explanation.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

// Id returns the issue's ID.
func (i *Issue) Id() Id { return i.id }

// MarkdownMsg returns the raw Markdown.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// DocLinks returns a copy of the documentation links.
func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// Render renders the issue with the named glamour style ("notty", "dark",
// "light", "auto").
func (i *Issue) Render(style string) (string, error) {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(sb.String(), style)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

The configuration file exists but is not valid.

## Things you can try:
- Compare it with the defaults:
~~~
$ clishell config show
~~~
- Regenerate a default file and merge your changes back:
~~~
$ clishell config init --force
~~~
- Pass another file with ` + "`--config <path>`" + `.`,
	}

	commandFileNotFoundIssue = &Issue{
		id: CommandFileNotFoundId,
		mdMsg: `
# Command file not found

` + "`clishell run`" + ` reads one command per line from each file it is given.

## Things you can try:
- Check the path, relative paths resolve from the current directory.
- Pipe commands instead: ` + "`echo 'help' | clishell`",
	}

	unknownCommandIssue = &Issue{
		id: UnknownCommandId,
		mdMsg: `
# Unknown command

No registered plugin provides this command name.

## Things you can try:
- List the commands of every plugin:
~~~
$ clishell plugins
~~~
- Inside the shell, run ` + "`help`" + ` or ` + "`list-plugins -v`" + `.
- A plugin listed in ` + "`plugins.disabled`" + ` is not registered.`,
	}

	scriptLoadFailedIssue = &Issue{
		id: ScriptLoadFailedId,
		mdMsg: `
# Script failed

The script either did not parse, exited with a non-zero status or called a
function that is not defined in its environment.

## Things you can try:
- Functions from an earlier load are only visible when that load retained
  its environment (` + "`script -r`" + `) and this load uses the same handle (` + "`-e`" + `).
- Use ` + "`show-env -e <handle>`" + ` to inspect what an environment defines.
- Host functions are ` + "`print`, `println`, `dispatchCommand` and `getPluginInstance`" + `.`,
	}

	scriptTooLargeIssue = &Issue{
		id: ScriptTooLargeId,
		mdMsg: `
# Script file too large

Script files are read fully into memory before they run.

## Things you can try:
- Raise ` + "`scripting.max_script_bytes`" + ` in the configuration.
- Split the script and load the parts into one retained environment.`,
	}

	pluginRegistrationFailedIssue = &Issue{
		id: PluginRegistrationFailedId,
		mdMsg: `
# A plugin could not be registered

Two plugins claimed the same command name or plugin name, or a plugin failed
to initialize. Registration is all-or-nothing so none of the plugin's
commands are available.

## Things you can try:
- Disable one of the conflicting plugins with ` + "`plugins.disabled`" + `.`,
	}

	serveFailedIssue = &Issue{
		id: ServeFailedId,
		mdMsg: `
# The SSH server could not start

## Things you can try:
- Check that ` + "`ssh.host`:`ssh.port`" + ` is free:
~~~
$ clishell serve --port 2222
~~~
- Use port 0 to let the system pick a free port.`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied

The shell could not read or write a file it was asked to use, such as a
capture target, a properties file or a script.

## Things you can try:
- Check the file's permissions and ownership.
- Capture into a buffer instead of a file.`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():         configLoadFailedIssue,
		commandFileNotFoundIssue.Id():      commandFileNotFoundIssue,
		unknownCommandIssue.Id():           unknownCommandIssue,
		scriptLoadFailedIssue.Id():         scriptLoadFailedIssue,
		scriptTooLargeIssue.Id():           scriptTooLargeIssue,
		pluginRegistrationFailedIssue.Id(): pluginRegistrationFailedIssue,
		serveFailedIssue.Id():              serveFailedIssue,
		permissionDeniedIssue.Id():         permissionDeniedIssue,
	}
)

// Values returns every catalogued issue ordered by ID.
func Values() []*Issue {
	values := make([]*Issue, 0, len(issues))
	for i := range maps.Values(issues) {
		values = append(values, i)
	}
	slices.SortFunc(values, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return values
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
