// Package core turns CSV and spreadsheet files with unknown layouts into
// ordered records and column metadata.
//
// This package holds all ingestion logic, independent of any transport. It
// is used by the web handlers, the inspect CLI, and tests without
// modification.
//
// # Pipeline
//
// [Ingest] dispatches on the file extension and runs:
//
//  1. CSV: [Decode] (UTF-8, or EUC-KR when the bytes are not valid UTF-8),
//     then [Tokenize] into a [RawGrid].
//  2. XLSX/XLS: [ExtractSheet] reads the first sheet. HTML tables saved
//     with an .xls extension are read as well.
//  3. [DiscoverHeader] picks the first of the leading rows with enough
//     non-empty cells, falling back to row 0. Blank names become
//     "Column C" style names.
//  4. [Materialize] builds one [Record] per data row, drops empty rows, and
//     prunes columns that are empty everywhere (never down to zero).
//  5. [DescribeColumns] infers a [ColumnType] per column using an 80%
//     majority.
//
// Failures never escape as errors: they are carried on [ParseOutcome].Err.
//
// # Queries
//
// [Filter], [SortWith], and [Page] operate on the records of an outcome and
// never fail. [QuerySpec] chains all three. Sorting orders distance fields
// ("43,437 Km") by their numeric value, then plain numbers, then digit
// strings, then text by Korean collation, with empty values last.
//
// # Schemas
//
// Records are schema-less. Callers that know what a file should contain can
// register a [Schema] and project records onto it with [ProjectTyped],
// which matches headers by name or alias and validates each value.
//
// # Service
//
// [Service] wraps the engine with a size limit, an [IngestLimiter] on
// concurrent ingestions, metrics, and a short-lived in-memory store so a
// caller can re-query an outcome by ID until it expires.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code for support reference:
//
//   - FILE001-FILE007: File errors (size, format, encoding, empty)
//   - ING001-ING004: Ingestion errors (schemas, parameters, expired IDs)
//   - REQ001-REQ003: Request errors (busy, cancelled, timeout)
//   - RATE001: Rate limiting
package core
