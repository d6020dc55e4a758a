// Package submitter provides ActionSubmitter implementations that hand
// actions to something outside the process: a log, or a JSON-lines file
// consumed by an external signer.
package submitter
