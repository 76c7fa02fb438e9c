/*
Package cli provides command-line helpers for the toolgate command.

Output Formatting:

Command results print as text or JSON. Results that implement TextRenderer
control their own text layout:

	format, err := cli.ParseFormat(outputFlag)
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, report); err != nil {
		return err
	}

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(total)
	for ... {
		progress.Record(decision.Allowed)
	}
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Exit Codes:

ExitCode maps command errors to process exit codes: ExitConfig for
configuration problems, ExitFailure for everything else.
*/
package cli
