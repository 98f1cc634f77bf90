package web

const editorHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Sketchstore Editor</title>
<link rel="stylesheet" href="https://esm.sh/tldraw@3/tldraw.css">
<style>
  html, body, #root { height: 100%; width: 100%; margin: 0; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; }
  .status { display: flex; align-items: center; justify-content: center; height: 100%; }
  .status.error { color: #ef4444; }
  .editor { position: relative; height: 100%; width: 100%; }
</style>
</head>
<body>
<div id="root"><div class="status">Loading editor...</div></div>
<script type="module">
import React from "https://esm.sh/react@18";
import { createRoot } from "https://esm.sh/react-dom@18/client";
import { Tldraw, getSnapshot, loadSnapshot } from "https://esm.sh/tldraw@3?deps=react@18,react-dom@18";

const persistenceKey = {{.PersistenceKey}};
const debounceMs = {{.DebounceMs}};
const getURL = {{.GetURL}};
const saveURL = {{.SaveURL}};

const root = createRoot(document.getElementById("root"));

function status(text, cls) {
  root.render(React.createElement("div", { className: "status " + (cls || "") }, text));
}

function debounce(fn, wait) {
  let timer = null;
  return (arg) => {
    clearTimeout(timer);
    timer = setTimeout(() => fn(arg), wait);
  };
}

async function trpc(url, init) {
  const res = await fetch(url, init);
  const body = await res.json();
  if (body.error) throw new Error(body.error.message);
  return body.result.data;
}

const save = debounce((snapshot) => {
  trpc(saveURL, {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({ data: snapshot }),
  }).catch((err) => console.error("Failed to save store data:", err));
}, debounceMs);

async function main() {
  status("Loading editor...");
  let stored;
  try {
    stored = await trpc(getURL);
  } catch (err) {
    status("Error loading editor: " + err.message, "error");
    return;
  }

  root.render(
    React.createElement("div", { className: "editor" },
      React.createElement(Tldraw, {
        persistenceKey,
        onMount: (editor) => {
          if (stored && stored.data) {
            loadSnapshot(editor.store, stored.data);
          }
          editor.store.listen(() => save(getSnapshot(editor.store)));
        },
      })
    )
  );
}

main();
</script>
</body>
</html>
`
