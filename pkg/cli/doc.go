/*
Package cli provides command-line interface utilities for the gateway.

The cli package includes output formatters and error types shared by the
gateway subcommands.

Output Formatting:

Commands that report structured results (audit counts, validation
summaries) support text and JSON output:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Errors:

Subcommands wrap failures in ConfigError or CommandError so the root
command prints a consistent message and exit code:

	if err := config.LoadConfig(path); err != nil {
		return cli.NewConfigError("", err.Error())
	}
*/
package cli
