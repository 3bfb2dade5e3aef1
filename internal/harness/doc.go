// Package harness runs YAML scenarios against a fully wired inkwell core.
//
// Each scenario gets a fresh in-memory store, a running bus, Library State,
// Current-Context State and a statistics engine, all sharing one fixed clock.
// Steps call real library and workspace operations; every bus event they
// publish is captured in the trace.
//
// # Scenario Format
//
//	name: chapter_words
//	description: "Chapter word counts move the book total"
//	today: "2024-03-14"
//	setup:
//	  - action: library.create_book
//	    args: { title: Harbor Lights, daily_target: 500 }
//	  - action: workspace.open
//	    args: { book: 1 }
//	flow:
//	  - invoke: workspace.add_chapter
//	    args: { title: One, word_count: 100 }
//	    expect:
//	      case: ok
//	      result: { id: 1 }
//	assertions:
//	  - type: trace_contains
//	    topic: book.stats_changed
//	    payload: { delta: 100 }
//	  - type: final_state
//	    table: books
//	    where: { id: 1 }
//	    expect: { word_count: 100 }
//
// # Assertion Types
//
//   - trace_contains: an event on topic whose payload contains the given fields
//   - trace_order: the first events on each topic appear in this order
//   - trace_count: exactly count events on topic
//   - final_state: one row of a store table matches the expected columns
//   - stats: the statistics report for a book (or all books) has the given fields
//
// # Deterministic Testing
//
// The clock is frozen at noon UTC on the scenario's day and only moves with
// clock.advance_days. Event ids are sequential. Traces are therefore stable
// enough for golden file comparison.
package harness
